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

// Package cloud provides components for interacting with Google Cloud services.
// This file adapts Google Cloud Identity Platform to the identity operations of
// the application.
//
// Three clients are involved:
//   - The Identity Toolkit REST API (v3, keyed by the web API key) for the flows
//     performed on behalf of an end user: sign-up, password sign-in, out-of-band
//     codes and account lookup.
//   - The Firebase Admin SDK for privileged operations: verifying ID tokens,
//     creating users and force-setting passwords.
//   - The Secure Token endpoint, through golang.org/x/oauth2, to exchange a
//     refresh token for a new ID token.
//
// Provider error names are translated into model.ErrorKind values here and
// nowhere else.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
)

// SecureTokenURL is the refresh-token grant endpoint of Identity Platform.
const SecureTokenURL = "https://securetoken.googleapis.com/v1/token"

// Out-of-band request types understood by getOobConfirmationCode.
const (
	oobVerifyEmail   = "VERIFY_EMAIL"
	oobPasswordReset = "PASSWORD_RESET"
)

// IdentityPlatform implements the identity provider operations.
type IdentityPlatform struct {
	toolkit *identitytoolkit.Service
	admin   *auth.Client
	refresh *oauth2.Config
}

// NewIdentityPlatform wires the three clients together. apiKey is the web API
// key of the project and is only used for the refresh grant here; the toolkit
// service must already have been created with it.
func NewIdentityPlatform(toolkit *identitytoolkit.Service, admin *auth.Client, apiKey string) *IdentityPlatform {
	return &IdentityPlatform{
		toolkit: toolkit,
		admin:   admin,
		refresh: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  SecureTokenURL + "?key=" + url.QueryEscape(apiKey),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// SignUp registers an email/password account and sends the verification code.
//
// Outputs:
//   - string: The new user's ID.
//   - error: Conflict, WeakCredential or Upstream.
func (p *IdentityPlatform) SignUp(ctx context.Context, email string, password string, name string) (string, error) {
	resp, err := p.toolkit.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:       email,
		Password:    password,
		DisplayName: name,
	}).Context(ctx).Do()
	if err != nil {
		return "", mapIdentityError(err, "Failed to sign up")
	}

	_, err = p.toolkit.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: oobVerifyEmail,
		IdToken:     resp.IdToken,
	}).Context(ctx).Do()
	if err != nil {
		return "", mapIdentityError(err, "Failed to send verification code")
	}
	return resp.LocalId, nil
}

// ConfirmSignUp applies a VERIFY_EMAIL code. The code is checked first, without
// consuming it, and only applied when it was issued for email.
func (p *IdentityPlatform) ConfirmSignUp(ctx context.Context, email string, code string) error {
	check, err := p.toolkit.Relyingparty.ResetPassword(&identitytoolkit.IdentitytoolkitRelyingpartyResetPasswordRequest{
		OobCode: code,
	}).Context(ctx).Do()
	if err != nil {
		return mapIdentityError(err, "Failed to confirm sign up")
	}
	if check.RequestType != oobVerifyEmail || !strings.EqualFold(check.Email, email) {
		return model.NewError(model.KindInvalidCode, "Invalid verification code")
	}

	_, err = p.toolkit.Relyingparty.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		OobCode: code,
	}).Context(ctx).Do()
	if err != nil {
		return mapIdentityError(err, "Failed to confirm sign up")
	}
	return nil
}

// SignIn performs a password sign-in. It does not look at the verified flag.
func (p *IdentityPlatform) SignIn(ctx context.Context, email string, password string) (*model.TokenBundle, error) {
	resp, err := p.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapIdentityError(err, "Failed to login")
	}
	return &model.TokenBundle{
		AccessToken:  resp.IdToken,
		RefreshToken: resp.RefreshToken,
		IDToken:      resp.IdToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// Lookup resolves an ID token to the account it belongs to.
func (p *IdentityPlatform) Lookup(ctx context.Context, idToken string) (*model.Identity, error) {
	resp, err := p.toolkit.Relyingparty.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: idToken,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapIdentityError(err, "Failed to look up account")
	}
	if len(resp.Users) == 0 {
		return nil, model.NewError(model.KindInvalidToken, "Invalid access token")
	}
	u := resp.Users[0]
	return &model.Identity{ID: u.LocalId, Email: u.Email, EmailVerified: u.EmailVerified, Name: u.DisplayName}, nil
}

// Refresh exchanges a refresh token for a new ID token. The refresh token
// handed in is returned unchanged.
func (p *IdentityPlatform) Refresh(ctx context.Context, refreshToken string) (*model.TokenBundle, error) {
	tok, err := p.refresh.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
			return nil, model.Wrap(model.KindInvalidToken, "Invalid refresh token", err)
		}
		return nil, model.Wrap(model.KindUpstream, "Failed to refresh tokens", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if len(idToken) == 0 {
		idToken = tok.AccessToken
	}
	return &model.TokenBundle{
		AccessToken:  idToken,
		RefreshToken: refreshToken,
		IDToken:      idToken,
		ExpiresIn:    tok.ExpiresIn,
	}, nil
}

// SendPasswordReset emails a PASSWORD_RESET code.
func (p *IdentityPlatform) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.toolkit.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: oobPasswordReset,
		Email:       email,
	}).Context(ctx).Do()
	if err != nil {
		return mapIdentityError(err, "Failed to initiate password reset")
	}
	return nil
}

// ConfirmPasswordReset applies a PASSWORD_RESET code with the new password.
func (p *IdentityPlatform) ConfirmPasswordReset(ctx context.Context, email string, code string, newPassword string) error {
	_, err := p.toolkit.Relyingparty.ResetPassword(&identitytoolkit.IdentitytoolkitRelyingpartyResetPasswordRequest{
		Email:       email,
		OobCode:     code,
		NewPassword: newPassword,
	}).Context(ctx).Do()
	if err != nil {
		return mapIdentityError(err, "Failed to reset password")
	}
	return nil
}

// VerifyToken checks the signature and expiry of an ID token and returns the
// current state of its account. Every failure is an InvalidToken.
func (p *IdentityPlatform) VerifyToken(ctx context.Context, idToken string) (*model.Identity, error) {
	token, err := p.admin.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, model.Wrap(model.KindInvalidToken, "Invalid access token", err)
	}
	user, err := p.admin.GetUser(ctx, token.UID)
	if err != nil {
		return nil, model.Wrap(model.KindInvalidToken, "Invalid access token", err)
	}
	return &model.Identity{
		ID:            user.UID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Name:          user.DisplayName,
	}, nil
}

// CreateUser provisions an account with the admin API. An existing email
// yields a Conflict.
func (p *IdentityPlatform) CreateUser(ctx context.Context, identity *model.FederatedIdentity, password string) error {
	params := (&auth.UserToCreate{}).
		Email(identity.Email).
		EmailVerified(identity.EmailVerified).
		Password(password)
	if len(identity.Name) > 0 {
		params = params.DisplayName(identity.Name)
	}
	if _, err := p.admin.CreateUser(ctx, params); err != nil {
		return mapAdminError(err, "Failed to create user")
	}
	return nil
}

// SetPassword force-sets the password of the account registered for email.
func (p *IdentityPlatform) SetPassword(ctx context.Context, email string, password string) error {
	user, err := p.admin.GetUserByEmail(ctx, email)
	if err != nil {
		return mapAdminError(err, "Failed to look up user")
	}
	if _, err = p.admin.UpdateUser(ctx, user.UID, (&auth.UserToUpdate{}).Password(password)); err != nil {
		return mapAdminError(err, "Failed to set password")
	}
	return nil
}

// identityErrors maps Identity Toolkit error names to kinds and client messages.
// The API reports them as the message of a googleapi.Error, sometimes followed
// by " : <detail>".
var identityErrors = []struct {
	name    string
	kind    model.ErrorKind
	message string
}{
	{"EMAIL_EXISTS", model.KindConflict, "User already exists"},
	{"WEAK_PASSWORD", model.KindWeakCredential, "Password does not meet requirements"},
	{"INVALID_OOB_CODE", model.KindInvalidCode, "Invalid verification code"},
	{"EXPIRED_OOB_CODE", model.KindExpiredCode, "Verification code has expired"},
	{"INVALID_PASSWORD", model.KindInvalidCredentials, "Invalid email or password"},
	{"INVALID_LOGIN_CREDENTIALS", model.KindInvalidCredentials, "Invalid email or password"},
	{"EMAIL_NOT_FOUND", model.KindInvalidCredentials, "Invalid email or password"},
	{"USER_NOT_FOUND", model.KindNotFound, "User not found"},
	{"USER_DISABLED", model.KindInvalidCredentials, "Invalid email or password"},
	{"INVALID_ID_TOKEN", model.KindInvalidToken, "Invalid access token"},
	{"TOKEN_EXPIRED", model.KindInvalidToken, "Invalid access token"},
	{"INVALID_REFRESH_TOKEN", model.KindInvalidToken, "Invalid refresh token"},
	{"TOO_MANY_ATTEMPTS_TRY_LATER", model.KindRateLimited, "Too many attempts, try again later"},
}

// mapIdentityError converts an Identity Toolkit error into a domain error.
// Unknown errors become Upstream with the given fallback message.
func mapIdentityError(err error, fallback string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, known := range identityErrors {
			if identityErrorMatches(apiErr, known.name) {
				return model.Wrap(known.kind, known.message, err)
			}
		}
	}
	return model.Wrap(model.KindUpstream, fallback, err)
}

func identityErrorMatches(apiErr *googleapi.Error, name string) bool {
	if strings.HasPrefix(apiErr.Message, name) {
		return true
	}
	for _, item := range apiErr.Errors {
		if strings.HasPrefix(item.Message, name) {
			return true
		}
	}
	return false
}

// mapAdminError converts a Firebase Admin error into a domain error.
func mapAdminError(err error, fallback string) error {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return model.Wrap(model.KindConflict, "User already exists", err)
	case auth.IsUserNotFound(err):
		return model.Wrap(model.KindNotFound, "User not found", err)
	case auth.IsIDTokenInvalid(err), auth.IsIDTokenExpired(err):
		return model.Wrap(model.KindInvalidToken, "Invalid access token", err)
	}
	return model.Wrap(model.KindUpstream, fallback, err)
}

// String helps when the adapter shows up in logs.
func (p *IdentityPlatform) String() string {
	return fmt.Sprintf("IdentityPlatform(%s)", p.toolkit.BasePath)
}
