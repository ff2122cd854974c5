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

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/services"
)

type uploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size" binding:"gte=0"`
	Hash        string `json:"hash"`
}

// FileHandlers serves the /files routes. Both require Authenticate.
type FileHandlers struct {
	Files *services.FileService
}

// UploadURL issues a signed PUT URL for a new object of the caller.
func (h *FileHandlers) UploadURL(c *gin.Context) {
	caller, ok := CurrentIdentity(c)
	if !ok {
		Failure(c, http.StatusUnauthorized, ErrUnauthorized, "")
		return
	}
	var req uploadURLRequest
	if !bindJSON(c, &req) {
		return
	}

	target, err := h.Files.IssueUploadTarget(c.Request.Context(), caller.ID, services.UploadRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Size:        req.Size,
		Hash:        req.Hash,
	})
	if err != nil {
		RespondError(c, err, http.StatusInternalServerError, ErrInternal)
		return
	}
	Success(c, http.StatusOK, target, "")
}

// DownloadURL issues a signed GET URL for ?key= if the caller owns it.
func (h *FileHandlers) DownloadURL(c *gin.Context) {
	caller, ok := CurrentIdentity(c)
	if !ok {
		Failure(c, http.StatusUnauthorized, ErrUnauthorized, "")
		return
	}
	key := c.Query("key")
	if len(key) == 0 {
		Failure(c, http.StatusBadRequest, ErrValidation, "key is required")
		return
	}

	target, err := h.Files.IssueDownloadTarget(c.Request.Context(), caller.ID, key)
	if err != nil {
		RespondError(c, err, http.StatusInternalServerError, ErrInternal)
		return
	}
	Success(c, http.StatusOK, target, "")
}
