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

package services_test

import (
	"context"
	"testing"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/services"
	test "github.com/jaycherian/gcp-go-flexvault/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
)

func newVerifier() *test.FakeTokenVerifier {
	return &test.FakeTokenVerifier{Identities: map[string]*model.FederatedIdentity{
		"google-token-1": {Subject: "sub-1", Email: "g@x.com", Name: "Gina", EmailVerified: true},
		"google-no-mail": {Subject: "sub-2"},
	}}
}

func newFederated(t *testing.T, provider *test.FakeIdentityProvider) *services.FederatedSignIn {
	t.Helper()
	fed, err := services.NewFederatedSignIn(provider, newVerifier(), "s3cret")
	require.NoError(t, err)
	return fed
}

func TestDerivePasswordIsDeterministic(t *testing.T) {
	a := services.DerivePassword([]byte("s3cret"), "sub-1")
	b := services.DerivePassword([]byte("s3cret"), "sub-1")
	c := services.DerivePassword([]byte("other"), "sub-1")

	assert.Equal(t, a, b)
	require.NotEqual(t, a, c)
	assert.Equal(t, 64, len(a))
}

func TestFederatedSignInTwiceReusesAccount(t *testing.T) {
	ctx := context.Background()
	provider := test.NewFakeIdentityProvider()
	fed := newFederated(t, provider)

	first, err := fed.SignIn(ctx, "google-token-1")
	require.NoError(t, err)
	second, err := fed.SignIn(ctx, "google-token-1")
	require.NoError(t, err)

	require.NotEqual(t, "", first.AccessToken)
	require.NotEqual(t, "", second.AccessToken)
	assert.Equal(t, 1, provider.AccountCount())
	assert.Equal(t, 2, provider.CallCount("CreateUser"))

	password, ok := provider.Password("g@x.com")
	require.True(t, ok)
	assert.Equal(t, services.DerivePassword([]byte("s3cret"), "sub-1"), password)
}

func TestFederatedSignInTakesOverPasswordAccount(t *testing.T) {
	ctx := context.Background()
	provider := test.NewFakeIdentityProvider()
	_, err := services.NewIdentityService(provider).Register(ctx, "g@x.com", "Passw0rd!", "Gina")
	require.NoError(t, err)

	_, err = newFederated(t, provider).SignIn(ctx, "google-token-1")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.AccountCount())
}

func TestFederatedSignInRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	fed := newFederated(t, test.NewFakeIdentityProvider())

	_, err := fed.SignIn(ctx, "forged")
	assert.Equal(t, model.KindInvalidToken, model.KindOf(err))

	_, err = fed.SignIn(ctx, "google-no-mail")
	assert.Equal(t, model.KindInvalidToken, model.KindOf(err))
}

func TestFederatedSignInRequiresSecret(t *testing.T) {
	ctx := context.Background()
	provider := test.NewFakeIdentityProvider()

	fed, err := services.NewFederatedSignIn(provider, newVerifier(), "")
	require.ErrorIs(t, err, services.ErrMissingSecret)
	assert.Nil(t, fed)

	// A hand-built instance without a key refuses before touching any account.
	unkeyed := &services.FederatedSignIn{Provider: provider, Verifier: newVerifier()}
	_, err = unkeyed.SignIn(ctx, "google-token-1")
	require.ErrorIs(t, err, services.ErrMissingSecret)
	assert.Equal(t, 0, provider.AccountCount())

	_, err = services.NewIdentityService(provider).Login(ctx, "g@x.com", services.DerivePassword(nil, "sub-1"))
	require.Error(t, err)
}
