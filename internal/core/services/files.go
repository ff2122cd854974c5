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

// Package services contains the business logic behind the HTTP handlers.
// This file, `files.go`, defines the FileService, which hands out secure,
// time-limited URLs for writing objects to and reading objects from Google
// Cloud Storage. Clients transfer file bytes directly with the object store;
// this service only issues the credentials and keeps the bookkeeping records.
package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// DefaultContentType is used when neither the client nor the file extension
// names a content type.
const DefaultContentType = "application/octet-stream"

// Object metadata attached to every signed upload. The object store echoes
// these back on the stored object.
const (
	MetaHeaderUser = "x-goog-meta-flexvault-user"
	MetaHeaderHash = "x-goog-meta-flexvault-hash"
)

// URLSigner issues method-scoped signed URLs for object keys.
type URLSigner interface {
	SignUpload(ctx context.Context, key string, contentType string, metadata map[string]string, expires time.Duration) (string, error)
	SignDownload(ctx context.Context, key string, expires time.Duration) (string, error)
}

// UploadStore persists pending upload records.
type UploadStore interface {
	Put(ctx context.Context, upload *model.PendingUpload) error
}

// FileReader reads file records by owner and key.
type FileReader interface {
	Get(ctx context.Context, ownerID string, key string) (*model.FileRecord, error)
}

// UploadRequest describes the object a client intends to upload.
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
	Hash        string
}

// UploadTarget is what the client needs to PUT the object. Every entry in
// Headers must be sent with the PUT exactly as given.
type UploadTarget struct {
	UploadURL string            `json:"uploadUrl"`
	Key       string            `json:"key"`
	UploadID  string            `json:"uploadId"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Headers   map[string]string `json:"headers"`
}

// DownloadTarget is a signed GET URL and its expiry.
type DownloadTarget struct {
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// FileService issues upload and download targets.
type FileService struct {
	Signer         URLSigner
	Uploads        UploadStore
	Files          FileReader
	UploadExpiry   time.Duration // Lifetime of a signed PUT URL.
	DownloadExpiry time.Duration // Lifetime of a signed GET URL.
	UploadTTL      time.Duration // Retention of a pending upload record.
	Now            func() time.Time
}

func (s *FileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ObjectKey builds the storage key for an upload: <owner>/<unixMillis>-<filename>.
func ObjectKey(ownerID string, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s", ownerID, at.UnixMilli(), filename)
}

// InferContentType returns contentType if set, else the MIME type registered
// for the filename's extension, else DefaultContentType.
func InferContentType(filename string, contentType string) string {
	if len(contentType) > 0 {
		return contentType
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if len(ext) > 0 {
		if kind := filetype.GetType(ext); kind != filetype.Unknown && len(kind.MIME.Value) > 0 {
			return kind.MIME.Value
		}
	}
	return DefaultContentType
}

// IssueUploadTarget signs a PUT URL for a new object owned by ownerID and
// records the pending upload. The declared size and hash are not checked
// against the object that eventually lands.
//
// Inputs:
//   - ctx: The context for the request.
//   - ownerID: The authenticated caller.
//   - req: The declared file attributes.
//
// Outputs:
//   - *UploadTarget: The URL, the object key, the pending upload ID and the URL expiry.
//   - error: Unauthorized without an owner, Validation for a bad filename, Upstream otherwise.
func (s *FileService) IssueUploadTarget(ctx context.Context, ownerID string, req UploadRequest) (*UploadTarget, error) {
	if len(ownerID) == 0 {
		return nil, model.NewError(model.KindUnauthorized, "Unauthorized")
	}
	if len(req.Filename) == 0 || strings.ContainsAny(req.Filename, `/\`) {
		return nil, model.NewError(model.KindValidation, "Filename must be a plain file name")
	}

	now := s.now()
	key := ObjectKey(ownerID, req.Filename, now)
	contentType := InferContentType(req.Filename, req.ContentType)
	// Every metadata header is part of the signature; an empty one would be
	// left out of the signed set but still sent by the client.
	headers := map[string]string{MetaHeaderUser: ownerID}
	if len(req.Hash) > 0 {
		headers[MetaHeaderHash] = req.Hash
	}

	url, err := s.Signer.SignUpload(ctx, key, contentType, headers, s.UploadExpiry)
	if err != nil {
		return nil, model.Wrap(model.KindUpstream, "Failed to sign upload URL", err)
	}

	upload := model.NewPendingUpload(ownerID, key, req.Filename, contentType, req.Size, req.Hash, now, s.UploadTTL)
	if err = s.Uploads.Put(ctx, upload); err != nil {
		return nil, model.Wrap(model.KindUpstream, "Failed to record upload", err)
	}

	target := &UploadTarget{
		UploadURL: url,
		Key:       key,
		UploadID:  upload.UploadID,
		ExpiresAt: now.Add(s.UploadExpiry),
		Headers:   map[string]string{"Content-Type": contentType},
	}
	for k, v := range headers {
		target.Headers[k] = v
	}
	return target, nil
}

// IssueDownloadTarget signs a GET URL for key. Only the owner's records are
// consulted, so keys of other users report NotFound.
func (s *FileService) IssueDownloadTarget(ctx context.Context, ownerID string, key string) (*DownloadTarget, error) {
	if len(ownerID) == 0 {
		return nil, model.NewError(model.KindUnauthorized, "Unauthorized")
	}
	if len(key) == 0 {
		return nil, model.NewError(model.KindValidation, "Key is required")
	}

	if _, err := s.Files.Get(ctx, ownerID, key); err != nil {
		if model.IsKind(err, model.KindNotFound) {
			return nil, err
		}
		return nil, model.Wrap(model.KindUpstream, "Failed to read file record", err)
	}

	now := s.now()
	url, err := s.Signer.SignDownload(ctx, key, s.DownloadExpiry)
	if err != nil {
		return nil, model.Wrap(model.KindUpstream, "Failed to sign download URL", err)
	}
	return &DownloadTarget{DownloadURL: url, ExpiresAt: now.Add(s.DownloadExpiry)}, nil
}
