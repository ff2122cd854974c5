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

// Package api contains the HTTP surface of the server. This file implements
// the /auth routes: registration, confirmation, login, token refresh, password
// reset, Google sign-in and the current user.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/services"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,password"`
	Name     string `json:"name" binding:"required"`
}

type confirmRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,password"`
}

type googleSignInRequest struct {
	IDToken string `json:"idToken" binding:"required,min=10"`
}

// AuthHandlers serves the /auth routes.
type AuthHandlers struct {
	Identity  *services.IdentityService
	Federated *services.FederatedSignIn
}

// Register creates an account. 201 with {userId, email}.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, err := h.Identity.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		RespondError(c, err, http.StatusBadRequest, "Failed to sign up")
		return
	}
	Success(c, http.StatusCreated, gin.H{"userId": userID, "email": req.Email},
		"User registered successfully. Please check your email for verification code.")
}

func (h *AuthHandlers) Confirm(c *gin.Context) {
	var req confirmRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Identity.ConfirmRegistration(c.Request.Context(), req.Email, req.Code); err != nil {
		RespondError(c, err, http.StatusBadRequest, "Failed to confirm signup")
		return
	}
	Success(c, http.StatusOK, gin.H{"email": req.Email}, "Email verified successfully")
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	tokens, err := h.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, err, http.StatusUnauthorized, "Failed to login")
		return
	}
	Success(c, http.StatusOK, tokens, "Login successful")
}

func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	tokens, err := h.Identity.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondError(c, err, http.StatusUnauthorized, "Failed to refresh tokens")
		return
	}
	Success(c, http.StatusOK, tokens, "Tokens refreshed successfully")
}

// ForgotPassword answers the same way whatever happens after validation, so
// the response does not reveal whether the account exists.
func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Identity.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		slog.WarnContext(c.Request.Context(), "password reset request failed", "error", err)
	}
	Success(c, http.StatusOK, gin.H{"email": req.Email},
		"If an account exists, a password reset code has been sent to your email.")
}

func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.Identity.ConfirmPasswordReset(c.Request.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		RespondError(c, err, http.StatusBadRequest, "Failed to reset password")
		return
	}
	Success(c, http.StatusOK, gin.H{"email": req.Email}, "Password reset successfully")
}

func (h *AuthHandlers) Google(c *gin.Context) {
	var req googleSignInRequest
	if !bindJSON(c, &req) {
		return
	}
	tokens, err := h.Federated.SignIn(c.Request.Context(), req.IDToken)
	if err != nil {
		RespondError(c, err, http.StatusBadRequest, "Failed to complete Google sign-in")
		return
	}
	Success(c, http.StatusOK, tokens, "Google sign-in succeeded")
}

// Me returns the caller resolved by Authenticate.
func (h *AuthHandlers) Me(c *gin.Context) {
	caller, ok := CurrentIdentity(c)
	if !ok {
		Failure(c, http.StatusUnauthorized, ErrUnauthorized, "")
		return
	}
	Success(c, http.StatusOK, caller, "")
}
