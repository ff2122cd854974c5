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

// Package api contains the HTTP surface of the server. This file assembles the
// gin engine: middleware, the health route and the /api/v1 groups.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/services"
)

// Dependencies are the services the routes call.
type Dependencies struct {
	Identity              *services.IdentityService
	Federated             *services.FederatedSignIn
	Files                 *services.FileService
	AuthRequestsPerSecond float64 // Limit on the /auth routes; 0 disables it.
	AuthBurst             int
}

// NewRouter creates the engine. The given middleware (tracing, CORS) runs
// before every route.
func NewRouter(deps *Dependencies, middleware ...gin.HandlerFunc) *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware...)

	Health(r)

	apiV1 := r.Group("/api/v1")
	{
		AuthRouter(apiV1, deps)
		FileRouter(apiV1, deps)
	}
	return r
}

// AuthRouter sets up the /auth routes.
func AuthRouter(r *gin.RouterGroup, deps *Dependencies) {
	h := &AuthHandlers{Identity: deps.Identity, Federated: deps.Federated}
	auth := r.Group("/auth", RateLimit(deps.AuthRequestsPerSecond, deps.AuthBurst))
	{
		auth.POST("/register", h.Register)
		auth.POST("/confirm", h.Confirm)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/google", h.Google)
		auth.GET("/me", Authenticate(deps.Identity), h.Me)
	}
}

// FileRouter sets up the /files routes.
func FileRouter(r *gin.RouterGroup, deps *Dependencies) {
	h := &FileHandlers{Files: deps.Files}
	files := r.Group("/files", Authenticate(deps.Identity))
	{
		files.POST("/upload-url", h.UploadURL)
		files.GET("/download-url", h.DownloadURL)
	}
}
