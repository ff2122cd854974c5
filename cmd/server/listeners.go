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

// This file wires the post-upload pipeline to its Pub/Sub subscriptions.
// Storage notifications for new objects arrive on one subscription and
// tagging jobs on the other.
//
// Functions:
//   - SetupListeners: Attaches the object-created and tagging workflows to
//     their listeners and starts them.
package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/workflow"
)

// SetupListeners configures and starts the background Pub/Sub listeners.
// Subscriptions missing from the configuration are skipped, which lets the
// pipeline run as Cloud Functions instead.
//
// Inputs:
//   - ctx: The application's root context; cancelling it stops the listeners.
//   - cloudClients: The initialized Google Cloud service clients.
func SetupListeners(ctx context.Context, cloudClients *cloud.ServiceClients) {
	if listener, ok := cloudClients.PubSubListeners[cloud.ObjectCreatedSubscription]; ok {
		// Marks the file READY and enqueues an embedding job. Deletes and
		// metadata updates share the notification topic and are skipped.
		listener.SetAttributeFilter(cloud.NotificationEventTypeAttribute, cloud.EventObjectFinalize)
		listener.SetCommand(workflow.NewObjectCreatedWorkflow(cloudClients.Files, cloudClients.Jobs, nil))
		listener.Listen(ctx)
	} else {
		slog.Warn("no subscription configured", "name", cloud.ObjectCreatedSubscription)
	}

	if listener, ok := cloudClients.PubSubListeners[cloud.JobsSubscription]; ok {
		listener.SetCommand(workflow.NewTaggingWorkflow(cloudClients.Files, nil, nil))
		listener.Listen(ctx)
	} else {
		slog.Warn("no subscription configured", "name", cloud.JobsSubscription)
	}
}
