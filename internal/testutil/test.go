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

// Package test provides utility functions and mock data to support the application's
// test suite. It helps in setting up a consistent test environment, loading
// test-specific configurations, and providing sample data for workflows and services.
package test

import (
	"fmt"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
)

// StateManager acts as a simple in-memory cache for the application configuration
// during test runs. This prevents the need to reload configuration files for every
// test, speeding up the test suite.
type StateManager struct {
	once   sync.Once
	config *cloud.Config
}

// state is a package-level variable that holds the singleton instance of StateManager,
// ensuring that the configuration is loaded only once per test run.
var state = &StateManager{}

// HandleErr is a simple test helper function that checks if an error is not nil.
// If an error exists, it fails the test immediately.
//
// Inputs:
//   - err: The error to check.
//   - t: The *testing.T object from the current test.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// GetObjectCreatedMessageText returns a JSON string that simulates the object
// resource Cloud Storage sends when key is finalized in the upload bucket.
//
// Returns:
//   - A string containing the JSON payload of a GCS notification.
func GetObjectCreatedMessageText(key string, size int64) string {
	return fmt.Sprintf(`{
  "kind": "storage#object",
  "id": "flexvault-uploads/%[1]s/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/flexvault-uploads/o/%[1]s",
  "name": "%[1]s",
  "bucket": "flexvault-uploads",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "application/pdf",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "timeStorageClassUpdated": "2024-10-11T03:04:08.672Z",
  "size": "%[2]d",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "metadata": { "flexvault-user": "u1", "flexvault-hash": "" },
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`, key, size)
}

// GetJobMessageText returns the JSON of an EMBEDDING job for key and owner.
func GetJobMessageText(key string, ownerID string) string {
	return fmt.Sprintf(`{"jobType":"EMBEDDING","key":%q,"userId":%q}`, key, ownerID)
}

// SetupOS configures the environment variables that `cloud.LoadConfig` depends
// on, directing it to `configs/.env.test.toml` at the module root.
//
// Returns:
//   - An error if setting any environment variable fails.
func SetupOS(configDir string) (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, configDir)
	if err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig is a singleton accessor for the test configuration. Tests run in
// their package directory, so configDir is the relative path to `configs`.
//
// Returns:
//   - A pointer to the loaded and cached cloud.Config struct.
func GetConfig(configDir string) *cloud.Config {
	state.once.Do(func() {
		if err := SetupOS(configDir); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		cloud.ApplyEnvOverrides(config)
		state.config = config
	})
	return state.config
}
