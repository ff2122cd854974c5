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

package cloud

import (
	"context"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"google.golang.org/api/idtoken"
)

// GoogleTokenVerifier validates Google-issued ID tokens for one OAuth client.
type GoogleTokenVerifier struct {
	ClientID string
}

func NewGoogleTokenVerifier(clientID string) *GoogleTokenVerifier {
	return &GoogleTokenVerifier{ClientID: clientID}
}

// Verify checks signature, expiry and audience, then extracts the claims used
// for provisioning. Any failure is an InvalidToken.
func (v *GoogleTokenVerifier) Verify(ctx context.Context, token string) (*model.FederatedIdentity, error) {
	payload, err := idtoken.Validate(ctx, token, v.ClientID)
	if err != nil {
		return nil, model.Wrap(model.KindInvalidToken, "Invalid Google token", err)
	}
	identity := &model.FederatedIdentity{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		identity.Name = name
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok {
		identity.EmailVerified = verified
	}
	return identity, nil
}
