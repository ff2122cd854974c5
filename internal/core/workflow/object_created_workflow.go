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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into pipelines. This file implements the workflow run
// when Cloud Storage reports a finalized object in the upload bucket.
//
// Logic Flow:
//  1. The notification payload is parsed and the owner is taken from the key.
//  2. The file record is upserted to READY with the reported size.
//  3. One EMBEDDING job is published for the object.
//
// Steps 2 and 3 are not atomic. A redelivered notification repeats both; the
// record update converges, the job is published again.
package workflow

import (
	"context"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/commands"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
)

// ObjectCreatedWorkflow is the command attached to object-created deliveries.
type ObjectCreatedWorkflow struct {
	cor.BaseCommand
	files     commands.FileStore
	publisher commands.JobPublisher
	clock     commands.Clock
	chain     cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the workflow against a chain context whose input is the raw
// notification payload.
func (w *ObjectCreatedWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// OnObjectCreated processes a single notification and returns the joined
// errors of the failed steps, or nil.
//
// Inputs:
//   - ctx: The context of the delivery.
//   - payload: The GCS object resource JSON.
func (w *ObjectCreatedWorkflow) OnObjectCreated(ctx context.Context, payload []byte) error {
	chCtx := cor.NewBaseContextWithInput(ctx, payload)
	w.Execute(chCtx)
	return chCtx.Err()
}

func (w *ObjectCreatedWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewObjectNotificationReader("object-notification-reader"))
	out.AddCommand(commands.NewFileReadyMarker("file-ready-marker", w.files, w.clock))
	out.AddCommand(commands.NewEmbeddingJobEnqueuer("embedding-job-enqueuer", w.publisher))
	w.chain = out
}

// NewObjectCreatedWorkflow is the constructor for the ObjectCreatedWorkflow.
//
// Inputs:
//   - files: The file record store, e.g. *cloud.FirestoreFileStore.
//   - publisher: The jobs queue, e.g. *cloud.PubSubJobQueue.
//   - clock: The time source for `updatedAt`; nil means time.Now.
//
// Returns:
//   - A pointer to a fully initialized ObjectCreatedWorkflow.
func NewObjectCreatedWorkflow(files commands.FileStore, publisher commands.JobPublisher, clock commands.Clock) *ObjectCreatedWorkflow {
	out := &ObjectCreatedWorkflow{
		BaseCommand: *cor.NewBaseCommand("object-created-workflow"),
		files:       files,
		publisher:   publisher,
		clock:       clock,
	}
	out.initializeChain()
	return out
}
