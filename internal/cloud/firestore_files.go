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
// This file implements the file record repository on Cloud Firestore.
//
// A file record is addressed by pk = "<owner>#<key>" and sk = "<key>". Firestore
// document IDs cannot contain "/", so the document ID is the query-escaped pk
// and pk and sk are also stored as fields.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreFileStore reads and updates file records.
type FirestoreFileStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreFileStore creates a repository over the given collection.
func NewFirestoreFileStore(client *firestore.Client, collection string) *FirestoreFileStore {
	return &FirestoreFileStore{client: client, collection: collection}
}

// FileDocumentID returns the Firestore document ID of a file record.
func FileDocumentID(ownerID string, key string) string {
	return url.QueryEscape(model.RecordKey(ownerID, key))
}

func (s *FirestoreFileStore) doc(ownerID string, key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(FileDocumentID(ownerID, key))
}

// Get returns the record for (ownerID, key), or a NotFound error.
func (s *FirestoreFileStore) Get(ctx context.Context, ownerID string, key string) (*model.FileRecord, error) {
	snap, err := s.doc(ownerID, key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, model.Wrap(model.KindNotFound, "File not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file record %s: %w", key, err)
	}

	record := &model.FileRecord{}
	if err = snap.DataTo(record); err != nil {
		return nil, fmt.Errorf("failed to decode file record %s: %w", key, err)
	}
	return record, nil
}

// MarkReady merges status READY, the size and the update time into the record,
// creating it if needed. Applying it twice yields the same status and size.
func (s *FirestoreFileStore) MarkReady(ctx context.Context, ownerID string, key string, size int64, at time.Time) error {
	_, err := s.doc(ownerID, key).Set(ctx, map[string]interface{}{
		"pk":        model.RecordKey(ownerID, key),
		"sk":        key,
		"ownerId":   ownerID,
		"status":    string(model.StatusReady),
		"size":      size,
		"updatedAt": at,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to mark file record %s ready: %w", key, err)
	}
	return nil
}

// AppendTags appends result.Tags to the stored tag list and overwrites the
// embedding ID. The read-modify-write runs in a transaction so concurrent
// deliveries do not lose each other's tags. Duplicates are kept.
func (s *FirestoreFileStore) AppendTags(ctx context.Context, ownerID string, key string, result *model.TagResult, at time.Time) error {
	ref := s.doc(ownerID, key)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var tags []string
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			tags, err = stringList(snap, "tags")
			if err != nil {
				return err
			}
		}

		tags = append(tags, result.Tags...)
		return tx.Set(ref, map[string]interface{}{
			"pk":          model.RecordKey(ownerID, key),
			"sk":          key,
			"ownerId":     ownerID,
			"tags":        tags,
			"embeddingId": result.EmbeddingID,
			"updatedAt":   at,
		}, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("failed to append tags to %s: %w", key, err)
	}
	return nil
}

// stringList reads an array field, treating a missing or null field as empty.
func stringList(snap *firestore.DocumentSnapshot, field string) ([]string, error) {
	raw, err := snap.DataAt(field)
	if err != nil || raw == nil {
		return nil, nil
	}
	values, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %s is %T, not an array", field, raw)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}
