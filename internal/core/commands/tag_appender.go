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
// This file defines `TagAppender`, the last step of the tagging workflow.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// TagAppender appends the generated tags to the file record and sets its
// embedding ID. The append does not dedup: processing the same job twice
// leaves the tag set in the record twice.
type TagAppender struct {
	cor.BaseCommand
	store FileStore
	now   Clock
}

// NewTagAppender is the constructor for TagAppender.
func NewTagAppender(name string, store FileStore, clock Clock) *TagAppender {
	return &TagAppender{BaseCommand: *cor.NewBaseCommand(name), store: store, now: orNow(clock)}
}

// IsExecutable also requires the job parsed by JobMessageReader.
func (c *TagAppender) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(GetJobParameterName()) != nil
}

func (c *TagAppender) Execute(context cor.Context) {
	result, ok := context.Get(c.GetInputParam()).(*model.TagResult)
	if !ok {
		c.Fail(context, fmt.Errorf("expected *model.TagResult as input"))
		return
	}
	job, ok := context.Get(GetJobParameterName()).(*model.JobMessage)
	if !ok {
		c.Fail(context, fmt.Errorf("expected *model.JobMessage under %s", GetJobParameterName()))
		return
	}

	err := c.store.AppendTags(context.GetContext(), job.UserID, job.Key, result, c.now())
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to append tags to %s: %w", job.Key, err))
		return
	}

	c.Succeed(context)
	context.Add(c.GetOutputParam(), result)
}
