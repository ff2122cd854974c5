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

// Package api contains the route definitions for the server. This file
// defines the health endpoint used by load balancers and Cloud Run health checks.
//
// Functions:
//   - Health: Registers GET /healthz on the given router.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health registers a liveness endpoint. It does not touch any backing service.
//
// Inputs:
//   - r: The router (engine or group) the route is added to.
func Health(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"status": "ok"}, "")
	})
}
