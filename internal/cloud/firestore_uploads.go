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
// This file stores pending upload records. The uploads collection is expected
// to carry a TTL policy on `expireAt`; nothing in the application deletes or
// completes these records.
package cloud

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// FirestoreUploadStore writes pending upload records.
type FirestoreUploadStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreUploadStore creates a repository over the given collection.
func NewFirestoreUploadStore(client *firestore.Client, collection string) *FirestoreUploadStore {
	return &FirestoreUploadStore{client: client, collection: collection}
}

// Put creates the record under its upload ID.
func (s *FirestoreUploadStore) Put(ctx context.Context, upload *model.PendingUpload) error {
	_, err := s.client.Collection(s.collection).Doc(upload.UploadID).Create(ctx, upload)
	if err != nil {
		return fmt.Errorf("failed to store pending upload %s: %w", upload.UploadID, err)
	}
	return nil
}
