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

// Package cor (Chain of Responsibility) provides the building blocks for the
// event workflows. This file defines `BaseContext`, the default implementation
// of the `Context` interface.
//
// A BaseContext lives for exactly one delivery of one event. It holds:
//   - A map of arbitrary data shared between commands (`data`).
//   - A map of the errors reported by commands, keyed by command name (`errors`).
//   - The Go `context.Context` carrying cancellation and the current span.
package cor

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	data    map[string]interface{} // Values shared between commands.
	errors  map[string]error       // Errors keyed by the command that reported them.
	context context.Context        // The Go context for the command currently running.
}

// NewBaseContext creates an empty context. Callers must set a Go context with
// SetContext before executing a chain against it.
func NewBaseContext() Context {
	return &BaseContext{
		data:   make(map[string]interface{}),
		errors: make(map[string]error),
	}
}

// NewBaseContextWithInput is a shortcut for the common case of starting a chain
// from a single payload.
func NewBaseContextWithInput(ctx context.Context, input interface{}) Context {
	out := NewBaseContext()
	out.SetContext(ctx)
	out.Add(CtxIn, input)
	return out
}

func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	return c.context
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

func (c *BaseContext) AddError(key string, err error) {
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

// Err joins the recorded errors, ordered by command name so the message is
// stable across runs.
func (c *BaseContext) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.errors))
	for name := range c.errors {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, c.errors[name]))
	}
	return errors.Join(errs...)
}
