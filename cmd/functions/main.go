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

// Command functions runs the post-upload pipeline on the Functions Framework.
// Locally it serves both CloudEvent entry points on $PORT (default 8080); the
// FUNCTION_TARGET environment variable selects one of them.
package main

import (
	"log/slog"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	"github.com/jaycherian/gcp-go-flexvault/internal/telemetry"
	"github.com/jaycherian/gcp-go-flexvault/internal/triggers"
)

func init() {
	telemetry.SetupLogging(os.Getenv("GOOGLE_CLOUD_PROJECT"))
	triggers.Register(triggers.LoadFromEnvironment)
}

func main() {
	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	if err := funcframework.Start(port); err != nil {
		slog.Error("functions framework stopped", "error", err)
		os.Exit(1)
	}
}
