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

// Package commands contains the individual steps of the event workflows.
// This file defines `EmbeddingJobEnqueuer`, the last step of the object-created
// workflow. It publishes one EMBEDDING job per processed notification.
//
// The publish carries no idempotency key. A redelivered notification therefore
// produces a second job, and the tagging side has to tolerate it.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// EmbeddingJobEnqueuer publishes the tagging job for a stored object.
type EmbeddingJobEnqueuer struct {
	cor.BaseCommand
	publisher JobPublisher
}

// NewEmbeddingJobEnqueuer is the constructor for EmbeddingJobEnqueuer.
func NewEmbeddingJobEnqueuer(name string, publisher JobPublisher) *EmbeddingJobEnqueuer {
	return &EmbeddingJobEnqueuer{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher}
}

func (c *EmbeddingJobEnqueuer) Execute(context cor.Context) {
	obj, ok := context.Get(c.GetInputParam()).(*model.StoredObject)
	if !ok {
		c.Fail(context, fmt.Errorf("expected *model.StoredObject as input"))
		return
	}

	job := model.NewEmbeddingJob(obj)
	if err := c.publisher.Publish(context.GetContext(), job); err != nil {
		c.Fail(context, fmt.Errorf("failed to enqueue job for %s: %w", obj.Key, err))
		return
	}

	c.Succeed(context)
	context.Add(GetJobParameterName(), job)
	context.Add(c.GetOutputParam(), job)
}
