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

// Package model defines the core data structures for the application.
// This file, `transient.go`, contains the objects that only live in memory
// while a workflow runs or while a request is being answered. They are passed
// between the commands of a chain and are never written to Firestore as-is.
package model

import (
	"errors"
	"strings"
)

// JobTypeEmbedding is the only job type placed on the jobs topic today.
const JobTypeEmbedding = "EMBEDDING"

// StoredObject is the distilled form of an object-created notification. The
// pipeline only needs to know where the object is, who owns it and how big it is.
type StoredObject struct {
	Bucket      string // The bucket that holds the object.
	Key         string // The full object name, e.g. "u1/1718000000000-doc.pdf".
	OwnerID     string // The first path segment of Key.
	Size        int64  // The byte size reported by the notification.
	ContentType string // The MIME type reported by the notification, if any.
}

// JobMessage is the work item published for the tagging worker.
type JobMessage struct {
	JobType string `json:"jobType"`
	Key     string `json:"key"`
	UserID  string `json:"userId"`
}

// NewEmbeddingJob builds the job message for a freshly stored object.
func NewEmbeddingJob(obj *StoredObject) *JobMessage {
	return &JobMessage{JobType: JobTypeEmbedding, Key: obj.Key, UserID: obj.OwnerID}
}

// TagResult is what a tagger hands back for one object.
type TagResult struct {
	Tags        []string
	EmbeddingID string
}

// Identity is a user as seen by the identity provider.
type Identity struct {
	ID            string `json:"userId"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Name          string `json:"name,omitempty"`
}

// TokenBundle is the session returned by a successful login or refresh.
// Identity Platform only issues an ID token and a refresh token, so
// AccessToken carries the ID token and is what callers send as a bearer.
type TokenBundle struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IDToken      string `json:"idToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// FederatedIdentity holds the verified claims of a third-party (Google) token.
type FederatedIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// ErrMissingOwner is returned when an object key has no owner segment.
var ErrMissingOwner = errors.New("object key has no owner segment")

// OwnerFromKey returns the first path segment of an object key. Keys are
// always written as "<owner>/<timestamp>-<filename>".
func OwnerFromKey(key string) (string, error) {
	owner, _, found := strings.Cut(key, "/")
	if !found || len(owner) == 0 {
		return "", ErrMissingOwner
	}
	return owner, nil
}
