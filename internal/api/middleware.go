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

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/services"
	"golang.org/x/time/rate"
)

// identityKey is the gin context key of the authenticated *model.Identity.
const identityKey = "flexvault.identity"

const bearerPrefix = "Bearer "

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, len(token) > 0
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's identity for the handlers.
func Authenticate(identity *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			Failure(c, http.StatusUnauthorized, ErrUnauthorized, "Missing or invalid authorization header")
			return
		}
		caller, err := identity.CurrentUser(c.Request.Context(), token)
		if err != nil {
			RespondError(c, err, http.StatusUnauthorized, "Invalid access token")
			return
		}
		c.Set(identityKey, caller)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by Authenticate.
func CurrentIdentity(c *gin.Context) (*model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	caller, ok := v.(*model.Identity)
	return caller, ok && caller != nil && len(caller.ID) > 0
}

// RateLimit allows requestsPerSecond requests per second across the routes it
// guards, with the given burst. A non-positive rate disables it.
func RateLimit(requestsPerSecond float64, burst int) gin.HandlerFunc {
	if requestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			Failure(c, http.StatusTooManyRequests, "Too many requests", "")
			return
		}
		c.Next()
	}
}
