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
// This file generates V4 signed URLs for direct uploads to and downloads from
// the upload bucket.
//
// When a signer service account is configured, the string to sign is sent to
// the IAM Credentials API (SignBlob), so no private key has to be present on
// the host. A PEM key for that account can be given instead, in which case
// signing happens locally. Otherwise the storage client signs with the
// credentials it found.
package cloud

import (
	"context"
	"fmt"
	"net/http"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// GCSSigner signs PUT and GET URLs for objects in one bucket.
type GCSSigner struct {
	StorageClient *storage.Client
	IAMClient     *credentials.IamCredentialsClient
	SignerEmail   string
	PrivateKey    []byte // PEM key of SignerEmail; takes precedence over IAMClient.
	Bucket        string
}

// NewGCSSigner creates a signer for bucket. iamClient and signerEmail may be
// left empty to sign with the storage client's own credentials.
func NewGCSSigner(storageClient *storage.Client, iamClient *credentials.IamCredentialsClient, signerEmail string, bucket string) *GCSSigner {
	return &GCSSigner{StorageClient: storageClient, IAMClient: iamClient, SignerEmail: signerEmail, Bucket: bucket}
}

// SignUpload returns a PUT URL for key. The URL is bound to contentType and to
// the given metadata headers; the uploader has to send exactly those. Headers
// with an empty value are not signed.
func (s *GCSSigner) SignUpload(ctx context.Context, key string, contentType string, metadata map[string]string, expires time.Duration) (string, error) {
	headers := make([]string, 0, len(metadata))
	for name, value := range metadata {
		if len(value) == 0 {
			continue
		}
		headers = append(headers, fmt.Sprintf("%s:%s", name, value))
	}

	opts := s.options(ctx, http.MethodPut, expires)
	opts.ContentType = contentType
	opts.Headers = headers
	return s.sign(key, opts)
}

// SignDownload returns a GET URL for key.
func (s *GCSSigner) SignDownload(ctx context.Context, key string, expires time.Duration) (string, error) {
	return s.sign(key, s.options(ctx, http.MethodGet, expires))
}

func (s *GCSSigner) options(ctx context.Context, method string, expires time.Duration) *storage.SignedURLOptions {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  method,
		Expires: time.Now().Add(expires),
	}

	switch {
	case len(s.SignerEmail) == 0:
	case len(s.PrivateKey) > 0:
		opts.GoogleAccessID = s.SignerEmail
		opts.PrivateKey = s.PrivateKey
	case s.IAMClient != nil:
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	return opts
}

func (s *GCSSigner) sign(key string, opts *storage.SignedURLOptions) (string, error) {
	u, err := s.StorageClient.Bucket(s.Bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", s.Bucket, key, err)
	}
	return u, nil
}
