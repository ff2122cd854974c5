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
// This file defines `ObjectNotificationReader`, the first command of the
// object-created workflow.
//
// When an upload lands in the bucket, Cloud Storage publishes a notification
// describing the new object. This command:
//  1. Reads the raw JSON payload from the context.
//  2. Unmarshals it into a `cloud.GCSPubSubNotification`.
//  3. Derives the owner from the first path segment of the object name.
//  4. Places a `model.StoredObject` in the context, both under a well-known key
//     and as the input of the next command.
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
)

// ObjectNotificationReader parses an object-created notification.
type ObjectNotificationReader struct {
	cor.BaseCommand
}

// NewObjectNotificationReader is the constructor for ObjectNotificationReader.
func NewObjectNotificationReader(name string) *ObjectNotificationReader {
	return &ObjectNotificationReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute turns the notification payload into a *model.StoredObject.
func (c *ObjectNotificationReader) Execute(context cor.Context) {
	in, err := payloadBytes(context.Get(c.GetInputParam()))
	if err != nil {
		c.Fail(context, err)
		return
	}

	var notification cloud.GCSPubSubNotification
	if err = json.Unmarshal(in, &notification); err != nil {
		c.Fail(context, fmt.Errorf("failed to unmarshal object notification: %w", err))
		return
	}

	obj, err := notification.ToStoredObject()
	if err != nil {
		c.Fail(context, err)
		return
	}

	c.Succeed(context)
	context.Add(GetStoredObjectParameterName(), obj)
	context.Add(c.GetOutputParam(), obj)
}

var _ cor.Command = (*ObjectNotificationReader)(nil)
