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

package cloud_test

import (
	"context"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	test "github.com/jaycherian/gcp-go-flexvault/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
)

func TestQuotaAwareIdentityProviderDelegates(t *testing.T) {
	backend := test.NewFakeIdentityProvider()
	provider := cloud.NewQuotaAwareIdentityProvider(backend, 0)

	userID, err := provider.SignUp(context.Background(), "a@x.io", "Passw0rd!", "A")
	require.NoError(t, err)
	assert.True(t, len(userID) > 0)
	assert.Equal(t, 1, backend.CallCount("SignUp"))
}

func TestQuotaAwareIdentityProviderLimits(t *testing.T) {
	backend := test.NewFakeIdentityProvider()
	provider := cloud.NewQuotaAwareIdentityProvider(backend, 0.001)
	ctx := context.Background()

	// The burst allows the first call through.
	_, err := provider.SignUp(ctx, "a@x.io", "Passw0rd!", "A")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = provider.SignIn(waitCtx, "a@x.io", "Passw0rd!")
	require.Error(t, err)
	assert.Equal(t, model.KindRateLimited, model.KindOf(err))
	assert.Equal(t, 0, backend.CallCount("SignIn"))

	// Token verification is never limited.
	_, err = provider.VerifyToken(waitCtx, "unknown")
	assert.Equal(t, model.KindInvalidToken, model.KindOf(err))
}
