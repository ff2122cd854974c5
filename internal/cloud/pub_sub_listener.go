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
// This file defines a generic Pub/Sub message listener. Receiving messages is
// kept here; processing them is delegated to a `cor.Command`.
//
// Logic Flow:
//  1. A PubSubListener is created with a client and a subscription ID.
//  2. A Command (a workflow) is attached to the listener.
//  3. `Listen` starts a goroutine that receives messages until the context ends.
//  4. Messages not matching the attribute filter, if one is set, are Ack'd
//     and skipped.
//  5. Every message gets its own span and its own chain context.
//  6. The message is Ack'd if the command completes without errors and Nack'd
//     otherwise, so Pub/Sub redelivers it under the subscription's retry policy.
//
// Structs:
//   - PubSubListener: Connects a subscription to the command processing it.
//
// Functions:
//   - NewPubSubListener: Constructor for creating a new PubSubListener.
//   - SetCommand: Attaches a processing command to the listener.
//   - SetAttributeFilter: Restricts processing to messages carrying an attribute value.
//   - Listen: Starts the background process to receive and handle messages.
package cloud

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubListener connects one subscription to the command processing its messages.
type PubSubListener struct {
	client       *pubsub.Client       // The client for interacting with the Pub/Sub service.
	subscription *pubsub.Subscription // The subscription this listener pulls from.
	command      cor.Command          // The command executed for each message.
	timeout      time.Duration        // Upper bound for processing one message; zero means none.
	filterKey    string               // Attribute a message must carry to be processed; empty means all.
	filterValue  string               // Required value of filterKey.
}

// NewPubSubListener is the constructor for creating a PubSubListener.
//
// Inputs:
//   - pubsubClient: An authenticated *pubsub.Client.
//   - subscriptionID: The ID of the subscription (e.g., "flexvault-jobs-sub").
//   - command: The command run for each message; may be attached later with SetCommand.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)

	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches a command to the listener. An already attached command
// is never replaced.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// SetTimeout bounds the time spent on a single message.
func (m *PubSubListener) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// SetAttributeFilter makes the listener process only messages whose attribute
// key equals value. Other messages are acknowledged without running the command.
func (m *PubSubListener) SetAttributeFilter(key, value string) {
	m.filterKey = key
	m.filterValue = value
}

func (m *PubSubListener) accepts(msg *pubsub.Message) bool {
	return len(m.filterKey) == 0 || msg.Attributes[m.filterKey] == m.filterValue
}

// Listen starts receiving messages in a background goroutine. Receiving stops
// when ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening", "subscription", m.subscription.String())

	go func() {
		tracer := otel.Tracer("message-listener")

		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			if !m.accepts(msg) {
				slog.DebugContext(msgCtx, "skipping message",
					"subscription", m.subscription.ID(),
					"message_id", msg.ID,
					m.filterKey, msg.Attributes[m.filterKey])
				msg.Ack()
				return
			}

			if m.timeout > 0 {
				var cancel context.CancelFunc
				msgCtx, cancel = context.WithTimeout(msgCtx, m.timeout)
				defer cancel()
			}

			spanCtx, span := tracer.Start(msgCtx, "receive-message")
			defer span.End()
			span.SetAttributes(
				attribute.String("messaging.message.id", msg.ID),
				attribute.String("messaging.destination.subscription.name", m.subscription.ID()),
			)

			chainCtx := cor.NewBaseContextWithInput(spanCtx, msg.Data)
			m.command.Execute(chainCtx)

			if !chainCtx.HasErrors() {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}

			span.SetStatus(codes.Error, "failed")
			slog.ErrorContext(spanCtx, "error executing chain",
				"subscription", m.subscription.ID(),
				"message_id", msg.ID,
				"error", chainCtx.Err())
			msg.Nack()
		})

		if err != nil {
			slog.Error("error receiving data", "subscription", m.subscription.ID(), "error", err)
		}
	}()
}
