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
// This file, `persistent.go`, holds the records that are stored in Firestore:
// the file record keyed by owner and object key, and the short-lived pending
// upload record written when an upload URL is issued.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileStatus is the lifecycle state of a file record.
type FileStatus string

const (
	StatusPending FileStatus = "PENDING"
	StatusReady   FileStatus = "READY"
)

// FileRecord is the metadata kept for one stored object.
type FileRecord struct {
	OwnerID     string     `firestore:"ownerId" json:"ownerId"`
	Key         string     `firestore:"sk" json:"key"`
	PK          string     `firestore:"pk" json:"-"`
	Status      FileStatus `firestore:"status" json:"status"`
	Size        int64      `firestore:"size" json:"size"`
	Tags        []string   `firestore:"tags" json:"tags"`
	EmbeddingID string     `firestore:"embeddingId,omitempty" json:"embeddingId,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

// RecordKey builds the partition key of a file record. Because the owner is part
// of the key, two owners can never address the same record.
func RecordKey(ownerID string, key string) string {
	return fmt.Sprintf("%s#%s", ownerID, key)
}

// PendingUpload records an issued upload URL until it expires. Nothing marks it
// complete; the store's TTL policy removes it after ExpireAt.
type PendingUpload struct {
	UploadID    string     `firestore:"uploadId" json:"uploadId"`
	OwnerID     string     `firestore:"userId" json:"userId"`
	Key         string     `firestore:"key" json:"key"`
	Filename    string     `firestore:"filename" json:"filename"`
	ContentType string     `firestore:"contentType" json:"contentType"`
	Size        int64      `firestore:"size" json:"size"`
	Hash        string     `firestore:"hash,omitempty" json:"hash,omitempty"`
	Status      FileStatus `firestore:"status" json:"status"`
	CreatedAt   time.Time  `firestore:"createdAt" json:"createdAt"`
	ExpireAt    time.Time  `firestore:"expireAt" json:"expireAt"`
}

// NewPendingUpload creates a PENDING upload record that expires ttl after now.
//
// Inputs:
//   - ownerID, key, filename, contentType, size, hash: the upload being announced.
//   - now: the creation time.
//   - ttl: how long the record should live.
//
// Outputs:
//   - *PendingUpload: a record with a fresh random upload ID.
func NewPendingUpload(ownerID, key, filename, contentType string, size int64, hash string, now time.Time, ttl time.Duration) *PendingUpload {
	return &PendingUpload{
		UploadID:    uuid.NewString(),
		OwnerID:     ownerID,
		Key:         key,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Hash:        hash,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpireAt:    now.Add(ttl),
	}
}
