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

// Package services contains the business logic behind the HTTP handlers.
// This file, `identity.go`, defines the IdentityService, which implements the
// account lifecycle on top of an IdentityProvider: registration with email
// confirmation, password login, session refresh, password reset and resolving
// the caller of an authenticated request.
//
// The service never inspects provider error strings. Providers return
// *model.Error values and the service only switches on their kind.
package services

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// IdentityProvider is the contract of the managed identity backend.
// cloud.QuotaAwareIdentityProvider is the production implementation.
type IdentityProvider interface {
	SignUp(ctx context.Context, email string, password string, name string) (string, error)
	ConfirmSignUp(ctx context.Context, email string, code string) error
	SignIn(ctx context.Context, email string, password string) (*model.TokenBundle, error)
	Lookup(ctx context.Context, idToken string) (*model.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenBundle, error)
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email string, code string, newPassword string) error
	VerifyToken(ctx context.Context, idToken string) (*model.Identity, error)
	CreateUser(ctx context.Context, identity *model.FederatedIdentity, password string) error
	SetPassword(ctx context.Context, email string, password string) error
}

// IdentityService implements the account operations exposed under /auth.
type IdentityService struct {
	Provider IdentityProvider
}

func NewIdentityService(provider IdentityProvider) *IdentityService {
	return &IdentityService{Provider: provider}
}

// Register creates an unverified account and triggers the verification email.
//
// Inputs:
//   - ctx: The context for the request.
//   - email, password, name: The new account's attributes. Input validation has already happened.
//
// Outputs:
//   - string: The provider-assigned user ID.
//   - error: Conflict if the email is taken, WeakCredential if the provider rejects the password.
func (s *IdentityService) Register(ctx context.Context, email string, password string, name string) (string, error) {
	userID, err := s.Provider.SignUp(ctx, email, password, name)
	if err != nil {
		return "", fmt.Errorf("register %s: %w", email, err)
	}
	return userID, nil
}

// ConfirmRegistration applies the code sent by Register.
func (s *IdentityService) ConfirmRegistration(ctx context.Context, email string, code string) error {
	if err := s.Provider.ConfirmSignUp(ctx, email, code); err != nil {
		return fmt.Errorf("confirm %s: %w", email, err)
	}
	return nil
}

// Login authenticates with email and password. Accounts that have not
// confirmed their email are refused with NotVerified.
//
// Outputs:
//   - *model.TokenBundle: The session tokens; AccessToken carries the ID token.
//   - error: InvalidCredentials, NotVerified or Upstream.
func (s *IdentityService) Login(ctx context.Context, email string, password string) (*model.TokenBundle, error) {
	tokens, err := s.Provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", email, err)
	}

	account, err := s.Provider.Lookup(ctx, tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", email, err)
	}
	if !account.EmailVerified {
		return nil, model.NewError(model.KindNotVerified, "Email not verified")
	}
	return tokens, nil
}

// RefreshSession exchanges a refresh token for fresh tokens.
func (s *IdentityService) RefreshSession(ctx context.Context, refreshToken string) (*model.TokenBundle, error) {
	tokens, err := s.Provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return tokens, nil
}

// RequestPasswordReset sends a reset code. Unknown accounts are not reported,
// so callers cannot learn which emails are registered.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) error {
	err := s.Provider.SendPasswordReset(ctx, email)
	switch model.KindOf(err) {
	case model.KindNotFound, model.KindInvalidCredentials:
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset for %s: %w", email, err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using the emailed code.
func (s *IdentityService) ConfirmPasswordReset(ctx context.Context, email string, code string, newPassword string) error {
	if err := s.Provider.ConfirmPasswordReset(ctx, email, code, newPassword); err != nil {
		return fmt.Errorf("confirm password reset for %s: %w", email, err)
	}
	return nil
}

// CurrentUser resolves an access token to its account. Every failure,
// including provider outages, is reported as InvalidToken.
func (s *IdentityService) CurrentUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	if len(accessToken) == 0 {
		return nil, model.NewError(model.KindInvalidToken, "Invalid access token")
	}
	identity, err := s.Provider.VerifyToken(ctx, accessToken)
	if err != nil {
		if model.IsKind(err, model.KindInvalidToken) {
			return nil, err
		}
		return nil, model.Wrap(model.KindInvalidToken, "Invalid access token", err)
	}
	return identity, nil
}
