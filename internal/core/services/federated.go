// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// TokenVerifier validates a third-party ID token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.FederatedIdentity, error)
}

// FederatedSignIn signs users in with a Google ID token. The Google account is
// mapped to a password account whose password is derived from the Google
// subject, so the regular password sign-in can mint the session tokens.
type FederatedSignIn struct {
	Provider IdentityProvider
	Verifier TokenVerifier
	Secret   []byte // HMAC key for derived passwords. Rotating it only takes effect on the next sign-in.
}

// ErrMissingSecret is returned when federated sign-in is configured without
// an HMAC key. An unkeyed derivation would let anyone who knows the Google
// subject compute the account password.
var ErrMissingSecret = errors.New("google auth secret is not configured")

// NewFederatedSignIn fails with ErrMissingSecret when secret is empty.
func NewFederatedSignIn(provider IdentityProvider, verifier TokenVerifier, secret string) (*FederatedSignIn, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	return &FederatedSignIn{Provider: provider, Verifier: verifier, Secret: []byte(secret)}, nil
}

// DerivePassword returns hex(HMAC-SHA256(secret, subject)).
func DerivePassword(secret []byte, subject string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignIn verifies googleIDToken, provisions the matching account on first use
// and returns session tokens for it. Calling it again for the same Google
// account is safe; the existing account is reused.
//
// Inputs:
//   - ctx: The context for the request.
//   - googleIDToken: The ID token obtained by the client from Google Sign-In.
//
// Outputs:
//   - *model.TokenBundle: Session tokens of the mapped account.
//   - error: InvalidToken when the token does not verify or lacks subject or email.
func (f *FederatedSignIn) SignIn(ctx context.Context, googleIDToken string) (*model.TokenBundle, error) {
	if len(f.Secret) == 0 {
		return nil, model.Wrap(model.KindUpstream, "Google sign-in is not configured", ErrMissingSecret)
	}

	identity, err := f.Verifier.Verify(ctx, googleIDToken)
	if err != nil {
		if model.IsKind(err, model.KindInvalidToken) {
			return nil, err
		}
		return nil, model.Wrap(model.KindInvalidToken, "Invalid Google token", err)
	}
	if len(identity.Subject) == 0 || len(identity.Email) == 0 {
		return nil, model.NewError(model.KindInvalidToken, "Google token is missing subject or email")
	}

	password := DerivePassword(f.Secret, identity.Subject)

	err = f.Provider.CreateUser(ctx, identity, password)
	if err != nil && !model.IsKind(err, model.KindConflict) {
		return nil, fmt.Errorf("provision %s: %w", identity.Email, err)
	}

	// Accounts created before a secret rotation, or by a password sign-up with
	// the same email, get the derived password here.
	if err = f.Provider.SetPassword(ctx, identity.Email, password); err != nil {
		return nil, fmt.Errorf("set derived password for %s: %w", identity.Email, err)
	}

	tokens, err := f.Provider.SignIn(ctx, identity.Email, password)
	if err != nil {
		return nil, fmt.Errorf("federated sign in %s: %w", identity.Email, err)
	}
	return tokens, nil
}
