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
// This file implements the jobs queue on top of a Pub/Sub topic.
package cloud

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// PubSubJobQueue publishes tagging jobs as JSON messages.
type PubSubJobQueue struct {
	topic *pubsub.Topic
}

// NewPubSubJobQueue creates a queue publishing to topicID.
func NewPubSubJobQueue(client *pubsub.Client, topicID string) *PubSubJobQueue {
	return &PubSubJobQueue{topic: client.Topic(topicID)}
}

// Publish sends the job and waits for the server to accept it. The message has
// no ordering key and no deduplication attribute.
func (q *PubSubJobQueue) Publish(ctx context.Context, job *model.JobMessage) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	result := q.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"jobType": job.JobType},
	})
	if _, err = result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish job to %s: %w", q.topic.ID(), err)
	}
	return nil
}

// Stop flushes pending publishes.
func (q *PubSubJobQueue) Stop() {
	q.topic.Stop()
}
