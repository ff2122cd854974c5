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

package cloud_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
)

// newEmulatorClient connects to the Firestore emulator. The tests using it are
// skipped unless FIRESTORE_EMULATOR_HOST is set, e.g. by
// `gcloud emulators firestore start --host-port=localhost:8080`.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if len(os.Getenv("FIRESTORE_EMULATOR_HOST")) == 0 {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}
	client, err := firestore.NewClient(context.Background(), "flexvault-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func collectionName(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

var storedAt = time.Date(2024, 10, 11, 3, 4, 8, 0, time.UTC)

func TestFirestoreMarkReadyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewFirestoreFileStore(newEmulatorClient(t), collectionName("files"))

	require.NoError(t, store.MarkReady(ctx, "u1", "u1/1-doc.pdf", 2048, storedAt))
	require.NoError(t, store.MarkReady(ctx, "u1", "u1/1-doc.pdf", 2048, storedAt.Add(time.Second)))

	record, err := store.Get(ctx, "u1", "u1/1-doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, record.Status)
	assert.Equal(t, int64(2048), record.Size)
	assert.Equal(t, "u1#u1/1-doc.pdf", record.PK)
	assert.Equal(t, "u1/1-doc.pdf", record.Key)
	assert.True(t, record.UpdatedAt.Equal(storedAt.Add(time.Second)))
}

func TestFirestoreAppendTagsKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewFirestoreFileStore(newEmulatorClient(t), collectionName("files"))
	result := &model.TagResult{Tags: []string{"AI", "Auto", "Tag"}, EmbeddingID: "emb-1"}

	require.NoError(t, store.MarkReady(ctx, "u1", "u1/1-doc.pdf", 10, storedAt))
	require.NoError(t, store.AppendTags(ctx, "u1", "u1/1-doc.pdf", result, storedAt))
	result.EmbeddingID = "emb-2"
	require.NoError(t, store.AppendTags(ctx, "u1", "u1/1-doc.pdf", result, storedAt))

	record, err := store.Get(ctx, "u1", "u1/1-doc.pdf")
	require.NoError(t, err)
	assert.DeepEqual(t, []string{"AI", "Auto", "Tag", "AI", "Auto", "Tag"}, record.Tags)
	assert.Equal(t, "emb-2", record.EmbeddingID)
	assert.Equal(t, model.StatusReady, record.Status)

	// A later notification must not drop the tags.
	require.NoError(t, store.MarkReady(ctx, "u1", "u1/1-doc.pdf", 10, storedAt))
	record, err = store.Get(ctx, "u1", "u1/1-doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 6, len(record.Tags))
}

func TestFirestoreGetMissingIsNotFound(t *testing.T) {
	store := cloud.NewFirestoreFileStore(newEmulatorClient(t), collectionName("files"))

	_, err := store.Get(context.Background(), "u1", "u1/missing.pdf")
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
}

func TestFirestoreRecordsAreScopedByOwner(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewFirestoreFileStore(newEmulatorClient(t), collectionName("files"))

	require.NoError(t, store.MarkReady(ctx, "u1", "u1/1-doc.pdf", 10, storedAt))
	_, err := store.Get(ctx, "u2", "u1/1-doc.pdf")
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
}

func TestFirestoreUploadPut(t *testing.T) {
	ctx := context.Background()
	client := newEmulatorClient(t)
	collection := collectionName("uploads")
	store := cloud.NewFirestoreUploadStore(client, collection)

	upload := &model.PendingUpload{
		UploadID:    uuid.NewString(),
		OwnerID:     "u1",
		Key:         "u1/1-doc.pdf",
		Filename:    "doc.pdf",
		ContentType: "application/pdf",
		Size:        2048,
		Status:      model.StatusPending,
		CreatedAt:   storedAt,
		ExpireAt:    storedAt.Add(time.Hour),
	}
	require.NoError(t, store.Put(ctx, upload))

	snap, err := client.Collection(collection).Doc(upload.UploadID).Get(ctx)
	require.NoError(t, err)
	stored := &model.PendingUpload{}
	require.NoError(t, snap.DataTo(stored))
	assert.Equal(t, "u1/1-doc.pdf", stored.Key)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.True(t, stored.ExpireAt.Equal(storedAt.Add(time.Hour)))

	// Upload IDs are never reused.
	require.Error(t, store.Put(ctx, upload))
}
