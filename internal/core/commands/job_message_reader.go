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
// This file defines `JobMessageReader`, the first command of the tagging
// workflow.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// JobMessageReader parses a job message taken from the jobs queue.
type JobMessageReader struct {
	cor.BaseCommand
}

// NewJobMessageReader is the constructor for JobMessageReader.
func NewJobMessageReader(name string) *JobMessageReader {
	return &JobMessageReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *JobMessageReader) Execute(context cor.Context) {
	in, err := payloadBytes(context.Get(c.GetInputParam()))
	if err != nil {
		c.Fail(context, err)
		return
	}

	job := &model.JobMessage{}
	if err = json.Unmarshal(in, job); err != nil {
		c.Fail(context, fmt.Errorf("failed to unmarshal job message: %w", err))
		return
	}
	if len(job.Key) == 0 || len(job.UserID) == 0 {
		c.Fail(context, errors.New("job message requires key and userId"))
		return
	}

	c.Succeed(context)
	context.Add(GetJobParameterName(), job)
	context.Add(c.GetOutputParam(), job)
}
