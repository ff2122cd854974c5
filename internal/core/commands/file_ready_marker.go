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
// This file defines `FileReadyMarker`, which moves the file record of a newly
// stored object to READY and records its size.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// FileReadyMarker upserts the READY status of a file record. Replaying the same
// notification leaves the record unchanged apart from its update time.
type FileReadyMarker struct {
	cor.BaseCommand
	store FileStore
	now   Clock
}

// NewFileReadyMarker is the constructor for FileReadyMarker.
//
// Inputs:
//   - name: A string name for this command instance.
//   - store: The file record repository.
//   - clock: The time source for `updatedAt`; nil means time.Now.
func NewFileReadyMarker(name string, store FileStore, clock Clock) *FileReadyMarker {
	return &FileReadyMarker{BaseCommand: *cor.NewBaseCommand(name), store: store, now: orNow(clock)}
}

func (c *FileReadyMarker) Execute(context cor.Context) {
	obj, ok := context.Get(c.GetInputParam()).(*model.StoredObject)
	if !ok {
		c.Fail(context, fmt.Errorf("expected *model.StoredObject as input"))
		return
	}

	err := c.store.MarkReady(context.GetContext(), obj.OwnerID, obj.Key, obj.Size, c.now())
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to mark %s ready: %w", obj.Key, err))
		return
	}

	c.Succeed(context)
	context.Add(c.GetOutputParam(), obj)
}
