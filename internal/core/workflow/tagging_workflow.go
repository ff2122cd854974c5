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

// Package workflow defines the high-level business logic orchestrations.
// This file implements the workflow consuming jobs from the tagging queue.
package workflow

import (
	"context"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/commands"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
)

// TaggingWorkflow parses a job, computes tags for it and appends them to the
// file record. Tags are appended as they come; a job delivered twice leaves
// the tags twice.
type TaggingWorkflow struct {
	cor.BaseCommand
	files  commands.FileStore
	tagger commands.Tagger
	clock  commands.Clock
	chain  cor.Chain
}

func (w *TaggingWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// OnQueueMessage processes the JSON body of one queue message.
func (w *TaggingWorkflow) OnQueueMessage(ctx context.Context, payload []byte) error {
	chCtx := cor.NewBaseContextWithInput(ctx, payload)
	w.Execute(chCtx)
	return chCtx.Err()
}

func (w *TaggingWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewJobMessageReader("job-message-reader"))
	out.AddCommand(commands.NewTagGenerator("tag-generator", w.tagger))
	out.AddCommand(commands.NewTagAppender("tag-appender", w.files, w.clock))
	w.chain = out
}

// NewTaggingWorkflow builds the workflow. A nil tagger selects the
// PlaceholderTagger sharing the workflow's clock.
func NewTaggingWorkflow(files commands.FileStore, tagger commands.Tagger, clock commands.Clock) *TaggingWorkflow {
	if tagger == nil {
		tagger = &commands.PlaceholderTagger{Now: clock}
	}
	out := &TaggingWorkflow{
		BaseCommand: *cor.NewBaseCommand("tagging-workflow"),
		files:       files,
		tagger:      tagger,
		clock:       clock,
	}
	out.initializeChain()
	return out
}
