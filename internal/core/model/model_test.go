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

package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
)

func TestKindOfThroughWrapping(t *testing.T) {
	cause := errors.New("EMAIL_EXISTS")
	err := fmt.Errorf("register: %w", model.Wrap(model.KindConflict, "User already exists", cause))

	assert.Equal(t, model.KindConflict, model.KindOf(err))
	assert.True(t, model.IsKind(err, model.KindConflict))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "User already exists", model.MessageOf(err, "fallback"))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("socket closed")
	assert.Equal(t, model.KindUpstream, model.KindOf(err))
	assert.Equal(t, "fallback", model.MessageOf(err, "fallback"))
	assert.False(t, model.IsKind(nil, model.KindUpstream))
}

func TestOwnerFromKey(t *testing.T) {
	owner, err := model.OwnerFromKey("u1/123-doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	for _, key := range []string{"doc.pdf", "/doc.pdf", ""} {
		_, err = model.OwnerFromKey(key)
		assert.True(t, errors.Is(err, model.ErrMissingOwner))
	}
}

func TestNewEmbeddingJob(t *testing.T) {
	job := model.NewEmbeddingJob(&model.StoredObject{Key: "u1/123-doc.pdf", OwnerID: "u1", Size: 2048})
	assert.Equal(t, model.JobTypeEmbedding, job.JobType)
	assert.Equal(t, "u1/123-doc.pdf", job.Key)
	assert.Equal(t, "u1", job.UserID)
}

func TestNewPendingUpload(t *testing.T) {
	now := time.Date(2024, 10, 11, 3, 4, 8, 0, time.UTC)
	a := model.NewPendingUpload("u1", "u1/1-doc.pdf", "doc.pdf", "application/pdf", 2048, "", now, time.Hour)
	b := model.NewPendingUpload("u1", "u1/1-doc.pdf", "doc.pdf", "application/pdf", 2048, "", now, time.Hour)

	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, now.Add(time.Hour), a.ExpireAt)
	assert.NotNil(t, a.UploadID)
	require.NotEqual(t, a.UploadID, b.UploadID)
	assert.Equal(t, "u1#u1/1-doc.pdf", model.RecordKey("u1", "u1/1-doc.pdf"))
}
