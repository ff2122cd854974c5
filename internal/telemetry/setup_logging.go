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

// Package telemetry provides utilities for setting up and configuring
// application observability, including logging, tracing, and metrics.
// This file handles structured logging compatible with Google Cloud Logging,
// with every record correlated to the active OpenTelemetry trace.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Cloud Logging special payload fields.
// See: https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
const (
	TraceKey        = "logging.googleapis.com/trace"
	SpanIDKey       = "logging.googleapis.com/spanId"
	TraceSampledKey = "logging.googleapis.com/trace_sampled"
)

// spanContextLogHandler wraps another handler and adds the trace and span IDs
// of the context to each record.
type spanContextLogHandler struct {
	slog.Handler
	projectID string // When set, traces are written as "projects/<id>/traces/<trace>".
}

func handlerWithSpanContext(handler slog.Handler, projectID string) *spanContextLogHandler {
	return &spanContextLogHandler{Handler: handler, projectID: projectID}
}

func (t *spanContextLogHandler) Handle(ctx context.Context, record slog.Record) error {
	if s := trace.SpanContextFromContext(ctx); s.IsValid() {
		traceID := s.TraceID().String()
		if len(t.projectID) > 0 {
			traceID = fmt.Sprintf("projects/%s/traces/%s", t.projectID, traceID)
		}
		record.AddAttrs(
			slog.String(TraceKey, traceID),
			slog.String(SpanIDKey, s.SpanID().String()),
			slog.Bool(TraceSampledKey, s.TraceFlags().IsSampled()),
		)
	}
	return t.Handler.Handle(ctx, record)
}

func (t *spanContextLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return handlerWithSpanContext(t.Handler.WithAttrs(attrs), t.projectID)
}

func (t *spanContextLogHandler) WithGroup(name string) slog.Handler {
	return handlerWithSpanContext(t.Handler.WithGroup(name), t.projectID)
}

// replacer renames the default slog keys to the ones Cloud Logging parses
// ("severity", "timestamp", "message").
func replacer(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		// https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry#LogSeverity
		if level, ok := a.Value.Any().(slog.Level); ok && level == slog.LevelWarn {
			a.Value = slog.StringValue("WARNING")
		}
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// NewLogHandler builds the JSON handler used by the application.
//
// Inputs:
//   - w: Where records are written.
//   - projectID: The Google Cloud project used to qualify trace IDs; may be empty.
//   - level: The minimum level written.
func NewLogHandler(w io.Writer, projectID string, level slog.Leveler) slog.Handler {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{ReplaceAttr: replacer, Level: level})
	return handlerWithSpanContext(jsonHandler, projectID)
}

// SetupLogging makes the Cloud Logging handler the slog default and routes the
// standard `log` package through it. Cloud Run and Cloud Functions collect
// stdout, so no log file is written.
func SetupLogging(projectID string) {
	logger := slog.New(NewLogHandler(os.Stdout, projectID, slog.LevelInfo))
	slog.SetDefault(logger)
	log.SetFlags(0)
}
