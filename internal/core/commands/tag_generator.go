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
// This file defines `TagGenerator`, which asks a Tagger for the tags and the
// embedding reference of an object, and `PlaceholderTagger`, the tagger used
// until a real model is plugged in.
package commands

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/cor"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// PlaceholderTags is the fixed tag set produced by PlaceholderTagger.
var PlaceholderTags = []string{"AI", "Auto", "Tag"}

// PlaceholderTagger returns PlaceholderTags and an embedding ID derived from
// the current time. It never reads the object.
type PlaceholderTagger struct {
	Now Clock
}

func (t *PlaceholderTagger) Tag(_ context.Context, _ *model.JobMessage) (*model.TagResult, error) {
	tags := make([]string, len(PlaceholderTags))
	copy(tags, PlaceholderTags)
	return &model.TagResult{
		Tags:        tags,
		EmbeddingID: fmt.Sprintf("embed-%d", orNow(t.Now)().UnixMilli()),
	}, nil
}

// TagGenerator runs the configured Tagger for the job in its input.
type TagGenerator struct {
	cor.BaseCommand
	tagger Tagger
}

// NewTagGenerator is the constructor for TagGenerator.
func NewTagGenerator(name string, tagger Tagger) *TagGenerator {
	return &TagGenerator{BaseCommand: *cor.NewBaseCommand(name), tagger: tagger}
}

func (c *TagGenerator) Execute(context cor.Context) {
	job, ok := context.Get(c.GetInputParam()).(*model.JobMessage)
	if !ok {
		c.Fail(context, fmt.Errorf("expected *model.JobMessage as input"))
		return
	}

	result, err := c.tagger.Tag(context.GetContext(), job)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to tag %s: %w", job.Key, err))
		return
	}

	c.Succeed(context)
	context.Add(c.GetOutputParam(), result)
}
