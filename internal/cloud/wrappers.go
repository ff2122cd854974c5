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
// This file implements a decorator around the identity backend that applies a
// client side rate limit before every call to Identity Platform.
//
// Identity Platform enforces per-project quotas on sign-up, sign-in and
// out-of-band email requests. Calls wait on a token bucket; a caller whose
// context ends while it is waiting gets a RateLimited error.
//
// Structs:
//   - QuotaAwareIdentityProvider: Wraps an identityBackend and a rate.Limiter.
//
// Functions:
//   - NewQuotaAwareIdentityProvider: Constructor; a non-positive rate disables limiting.
package cloud

import (
	"context"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"golang.org/x/time/rate"
)

// identityBackend is the set of operations IdentityPlatform offers.
type identityBackend interface {
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

// QuotaAwareIdentityProvider is a decorator over an identity backend. Every
// method waits for the limiter before delegating.
type QuotaAwareIdentityProvider struct {
	backend identityBackend
	limiter *rate.Limiter // nil when limiting is disabled.
}

// NewQuotaAwareIdentityProvider wraps backend with a limiter allowing
// requestsPerSecond calls per second, with a burst of the same size rounded up.
//
// Inputs:
//   - backend: The provider doing the actual work, normally *IdentityPlatform.
//   - requestsPerSecond: The sustained rate; zero or less disables limiting.
func NewQuotaAwareIdentityProvider(backend identityBackend, requestsPerSecond float64) *QuotaAwareIdentityProvider {
	q := &QuotaAwareIdentityProvider{backend: backend}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if float64(burst) < requestsPerSecond {
			burst++
		}
		q.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return q
}

func (q *QuotaAwareIdentityProvider) wait(ctx context.Context) error {
	if q.limiter == nil {
		return nil
	}
	if err := q.limiter.Wait(ctx); err != nil {
		return model.Wrap(model.KindRateLimited, "Too many requests", err)
	}
	return nil
}

func (q *QuotaAwareIdentityProvider) SignUp(ctx context.Context, email string, password string, name string) (string, error) {
	if err := q.wait(ctx); err != nil {
		return "", err
	}
	return q.backend.SignUp(ctx, email, password, name)
}

func (q *QuotaAwareIdentityProvider) ConfirmSignUp(ctx context.Context, email string, code string) error {
	if err := q.wait(ctx); err != nil {
		return err
	}
	return q.backend.ConfirmSignUp(ctx, email, code)
}

func (q *QuotaAwareIdentityProvider) SignIn(ctx context.Context, email string, password string) (*model.TokenBundle, error) {
	if err := q.wait(ctx); err != nil {
		return nil, err
	}
	return q.backend.SignIn(ctx, email, password)
}

func (q *QuotaAwareIdentityProvider) Lookup(ctx context.Context, idToken string) (*model.Identity, error) {
	if err := q.wait(ctx); err != nil {
		return nil, err
	}
	return q.backend.Lookup(ctx, idToken)
}

func (q *QuotaAwareIdentityProvider) Refresh(ctx context.Context, refreshToken string) (*model.TokenBundle, error) {
	if err := q.wait(ctx); err != nil {
		return nil, err
	}
	return q.backend.Refresh(ctx, refreshToken)
}

func (q *QuotaAwareIdentityProvider) SendPasswordReset(ctx context.Context, email string) error {
	if err := q.wait(ctx); err != nil {
		return err
	}
	return q.backend.SendPasswordReset(ctx, email)
}

func (q *QuotaAwareIdentityProvider) ConfirmPasswordReset(ctx context.Context, email string, code string, newPassword string) error {
	if err := q.wait(ctx); err != nil {
		return err
	}
	return q.backend.ConfirmPasswordReset(ctx, email, code, newPassword)
}

// VerifyToken runs on every authenticated request and is not limited.
func (q *QuotaAwareIdentityProvider) VerifyToken(ctx context.Context, idToken string) (*model.Identity, error) {
	return q.backend.VerifyToken(ctx, idToken)
}

func (q *QuotaAwareIdentityProvider) CreateUser(ctx context.Context, identity *model.FederatedIdentity, password string) error {
	if err := q.wait(ctx); err != nil {
		return err
	}
	return q.backend.CreateUser(ctx, identity, password)
}

func (q *QuotaAwareIdentityProvider) SetPassword(ctx context.Context, email string, password string) error {
	if err := q.wait(ctx); err != nil {
		return err
	}
	return q.backend.SetPassword(ctx, email, password)
}
