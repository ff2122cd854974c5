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

// Package api contains the HTTP surface of the server. This file defines the
// response envelope every route answers with and the mapping from domain
// error kinds to HTTP status codes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// Messages used by several routes.
const (
	ErrValidation   = "Validation error"
	ErrInternal     = "Internal error"
	ErrUnauthorized = "Unauthorized"
)

// Envelope is the body of every response. A success never carries Error and
// a failure never carries Data.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Success writes a success envelope.
func Success(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// Failure writes an error envelope and aborts the handler chain.
func Failure(c *gin.Context, status int, errorText string, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: errorText, Message: message})
}

// StatusFor maps an error kind to an HTTP status. upstream is the status used
// for KindUpstream, which differs between routes.
func StatusFor(kind model.ErrorKind, upstream int) int {
	switch kind {
	case model.KindValidation, model.KindWeakCredential, model.KindInvalidCode, model.KindExpiredCode:
		return http.StatusBadRequest
	case model.KindConflict:
		return http.StatusConflict
	case model.KindInvalidCredentials, model.KindNotVerified, model.KindInvalidToken, model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return upstream
	}
}

// RespondError logs err with the request's trace and writes the matching
// error envelope. Upstream failures are answered with fallback so that no
// internal detail reaches the client.
//
// Inputs:
//   - c: The gin request context.
//   - err: The error returned by a service.
//   - upstream: The status for errors without a domain kind.
//   - fallback: The client message for errors without a domain kind.
func RespondError(c *gin.Context, err error, upstream int, fallback string) {
	kind := model.KindOf(err)
	status := StatusFor(kind, upstream)
	slog.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"kind", kind.String(),
		"status", status,
		"error", err)

	message := fallback
	if kind != model.KindUpstream {
		message = model.MessageOf(err, fallback)
	}
	Failure(c, status, message, "")
}
