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

// Package commands contains the individual steps of the event workflows. Each
// command embeds cor.BaseCommand and talks to the outside world only through
// the small interfaces declared in this file, so workflows can be assembled
// with Firestore and Pub/Sub in production and with in-memory fakes in tests.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// FileStore is the part of the file record repository the pipeline needs.
type FileStore interface {
	// MarkReady upserts status READY, the size and the update time.
	MarkReady(ctx context.Context, ownerID string, key string, size int64, at time.Time) error
	// AppendTags appends tags without dedup and overwrites the embedding ID.
	AppendTags(ctx context.Context, ownerID string, key string, result *model.TagResult, at time.Time) error
}

// JobPublisher places a work item on the jobs queue.
type JobPublisher interface {
	Publish(ctx context.Context, job *model.JobMessage) error
}

// Tagger computes tags and an embedding reference for a stored object.
type Tagger interface {
	Tag(ctx context.Context, job *model.JobMessage) (*model.TagResult, error)
}

// Clock returns the current time. Commands take one so tests can pin it.
type Clock func() time.Time

func orNow(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}

// GetStoredObjectParameterName is the context key holding the *model.StoredObject
// parsed from the trigger.
func GetStoredObjectParameterName() string {
	return "__STORED_OBJ__"
}

// GetJobParameterName is the context key holding the *model.JobMessage being processed.
func GetJobParameterName() string {
	return "__JOB__"
}

// payloadBytes accepts the raw trigger payload in any of the forms the delivery
// adapters hand over.
func payloadBytes(in interface{}) ([]byte, error) {
	switch v := in.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", in)
	}
}
