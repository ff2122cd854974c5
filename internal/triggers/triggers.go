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

// Package triggers exposes the post-upload pipeline as CloudEvent functions.
// Deployed this way, Cloud Storage invokes ObjectFinalized directly when an
// upload completes, and the jobs topic invokes QueueMessage through an Eventarc
// Pub/Sub trigger. The server's Pub/Sub listeners run the same workflows.
package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/workflow"
)

// Entry point names, as given to `gcloud functions deploy --entry-point`.
const (
	ObjectFinalizedEntryPoint = "ObjectFinalized"
	QueueMessageEntryPoint    = "QueueMessage"
)

// CloudEvent types accepted by the handlers.
const (
	ObjectFinalizedType  = "google.cloud.storage.object.v1.finalized"
	MessagePublishedType = "google.cloud.pubsub.topic.v1.messagePublished"
)

// ErrEmptyMessage is returned for a Pub/Sub event without data.
var ErrEmptyMessage = errors.New("pub/sub message has no data")

// ObjectCreatedHandler processes the object resource of a new upload.
type ObjectCreatedHandler interface {
	OnObjectCreated(ctx context.Context, payload []byte) error
}

// QueueMessageHandler processes the body of one queue message.
type QueueMessageHandler interface {
	OnQueueMessage(ctx context.Context, payload []byte) error
}

// Handlers adapts the workflows to CloudEvent function signatures. A returned
// error makes the platform retry the event.
type Handlers struct {
	ObjectCreated ObjectCreatedHandler
	Tagging       QueueMessageHandler
}

// NewHandlers builds the workflows on top of the given clients.
func NewHandlers(clients *cloud.ServiceClients) *Handlers {
	return &Handlers{
		ObjectCreated: workflow.NewObjectCreatedWorkflow(clients.Files, clients.Jobs, nil),
		Tagging:       workflow.NewTaggingWorkflow(clients.Files, nil, nil),
	}
}

// messagePublishedData is the data of a messagePublished CloudEvent. The
// message data is base64 in the JSON, which encoding/json decodes into []byte.
type messagePublishedData struct {
	Message struct {
		Data       []byte            `json:"data"`
		MessageID  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// MessageData extracts the message body from a messagePublished event payload.
func MessageData(raw []byte) ([]byte, error) {
	var data messagePublishedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pub/sub event: %w", err)
	}
	if len(data.Message.Data) == 0 {
		return nil, ErrEmptyMessage
	}
	return data.Message.Data, nil
}

// OnObjectFinalized handles a storage finalized event. Events of other types
// are acknowledged without processing.
func (h *Handlers) OnObjectFinalized(ctx context.Context, e cloudevents.Event) error {
	if e.Type() != ObjectFinalizedType {
		slog.WarnContext(ctx, "ignoring event", "type", e.Type(), "id", e.ID())
		return nil
	}
	return traced(ctx, ObjectFinalizedEntryPoint, e, func(ctx context.Context) error {
		return h.ObjectCreated.OnObjectCreated(ctx, e.Data())
	})
}

// OnMessagePublished handles a job published to the jobs topic.
func (h *Handlers) OnMessagePublished(ctx context.Context, e cloudevents.Event) error {
	return traced(ctx, QueueMessageEntryPoint, e, func(ctx context.Context) error {
		payload, err := MessageData(e.Data())
		if err != nil {
			return err
		}
		return h.Tagging.OnQueueMessage(ctx, payload)
	})
}

func traced(ctx context.Context, name string, e cloudevents.Event, fn func(context.Context) error) error {
	spanCtx, span := otel.Tracer("event-trigger").Start(ctx, name)
	defer span.End()
	span.SetAttributes(
		attribute.String("cloudevents.event_id", e.ID()),
		attribute.String("cloudevents.event_type", e.Type()),
		attribute.String("cloudevents.event_source", e.Source()),
	)

	if err := fn(spanCtx); err != nil {
		span.SetStatus(codes.Error, "failed")
		slog.ErrorContext(spanCtx, "event processing failed", "function", name, "id", e.ID(), "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Loader creates the handlers on the first event.
type Loader func(ctx context.Context) (*Handlers, error)

// LazyHandlers builds the handlers on first use. A failed load is not kept, so
// the next event tries again.
type LazyHandlers struct {
	mu       sync.Mutex
	load     Loader
	handlers *Handlers
}

// NewLazyHandlers wraps load.
func NewLazyHandlers(load Loader) *LazyHandlers {
	return &LazyHandlers{load: load}
}

// Get returns the handlers, loading them if no earlier load succeeded.
func (l *LazyHandlers) Get() (*Handlers, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers != nil {
		return l.handlers, nil
	}

	h, err := l.load(context.Background())
	if err != nil {
		slog.Error("critical error during function initialization", "error", err)
		return nil, err
	}
	l.handlers = h
	return h, nil
}

// Register registers both entry points with the Functions Framework.
func Register(load Loader) {
	l := NewLazyHandlers(load)
	functions.CloudEvent(ObjectFinalizedEntryPoint, func(ctx context.Context, e cloudevents.Event) error {
		h, err := l.Get()
		if err != nil {
			return err
		}
		return h.OnObjectFinalized(ctx, e)
	})
	functions.CloudEvent(QueueMessageEntryPoint, func(ctx context.Context, e cloudevents.Event) error {
		h, err := l.Get()
		if err != nil {
			return err
		}
		return h.OnMessagePublished(ctx, e)
	})
}

// LoadFromEnvironment reads the configuration from the TOML files and the
// environment and connects the cloud clients.
func LoadFromEnvironment(ctx context.Context) (*Handlers, error) {
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	cloud.ApplyEnvOverrides(config)

	clients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewHandlers(clients), nil
}
