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
// event workflows. This file defines the interfaces shared by every command,
// chain and context in the package.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys used to pipe data between the commands of a
// BaseChain.
const (
	// CtxIn holds the primary input of a command. The BaseChain fills it with the
	// output of the previous command.
	CtxIn = "__IN__"
	// CtxOut is where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the state carried through one execution of a chain: data shared
// between commands, the errors they reported and the Go context used for
// cancellation and tracing.
type Context interface {
	// SetContext sets the Go context used by the next command.
	SetContext(context context.Context)

	// GetContext returns the current Go context.
	GetContext() context.Context

	// Add stores a value and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// Get returns a stored value, or nil.
	Get(key string) interface{}

	// Remove deletes a stored value.
	Remove(key string)

	// AddError records an error, keyed by the name of the command that produced it.
	AddError(key string, err error)

	// GetErrors returns every recorded error keyed by command name.
	GetErrors() map[string]error

	// HasErrors reports whether any command recorded an error.
	HasErrors() bool

	// Err joins all recorded errors into one, or returns nil.
	Err() error
}

// Executable is anything that can run against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is a single named step of a workflow.
type Command interface {
	Executable

	// GetName returns the unique name of the command, used for logs and telemetry.
	GetName() string

	// GetInputParam returns the key the command reads its input from.
	GetInputParam() string

	// GetOutputParam returns the key the command writes its output to.
	GetOutputParam() string

	// IsExecutable is the precondition checked before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command that runs other commands in order.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps going after a command
	// records an error. The default is to stop.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the chain.
	AddCommand(command Command) Chain
}
