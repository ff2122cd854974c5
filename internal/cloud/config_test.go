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

package cloud_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	test "github.com/jaycherian/gcp-go-flexvault/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
)

func writeFile(t *testing.T, dir string, name string, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadConfigLayersRuntimeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env.toml", `
[application]
name = "flexvault"
google_project_id = "base-project"

[storage]
upload_bucket = "base-bucket"

[topic_subscriptions.JobsTopic]
name = "flexvault-jobs-sub"
timeout_in_seconds = 30
`)
	writeFile(t, dir, ".env.unit.toml", `
[application]
google_project_id = "unit-project"

[identity]
api_key = "from-file"
`)
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")
	t.Setenv(cloud.EnvApiKey, "from-env")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	cloud.ApplyEnvOverrides(config)

	assert.Equal(t, "flexvault", config.Application.Name)
	assert.Equal(t, "unit-project", config.Application.GoogleProjectId)
	assert.Equal(t, "base-bucket", config.Storage.UploadBucket)
	assert.Equal(t, "from-env", config.Identity.ApiKey)
	assert.Equal(t, "flexvault-jobs-sub", config.TopicSubscriptions[cloud.JobsSubscription].Name)

	// Defaults survive when the files are silent.
	assert.Equal(t, cloud.DefaultPort, config.Server.Port)
	assert.Equal(t, cloud.DefaultUploadExpirySeconds, config.Storage.UploadExpirySeconds)
	assert.Equal(t, cloud.DefaultUploadTTLSeconds, config.Firestore.UploadTTLSeconds)
}

func TestLoadConfigMissingFilesKeepsDefaults(t *testing.T) {
	t.Setenv(cloud.EnvConfigFilePrefix, t.TempDir())
	t.Setenv(cloud.EnvConfigRuntime, "")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, cloud.DefaultFilesCollection, config.Firestore.FilesCollection)
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env.toml", "[application\nname=")
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "test")

	require.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}

func TestRepositoryConfiguration(t *testing.T) {
	config := test.GetConfig("../../configs")

	assert.Equal(t, "flexvault-test", config.Application.Name)
	assert.False(t, config.Application.TelemetryEnabled)
	assert.Equal(t, "flexvault-uploads-test", config.Storage.UploadBucket)
	assert.Equal(t, "flexvault-jobs", config.Topics.Jobs)
	assert.Equal(t, 900*time.Second, config.Storage.UploadExpiry())
	assert.Equal(t, time.Hour, config.Firestore.UploadTTL())
	assert.Equal(t, 2*time.Minute, config.TopicSubscriptions[cloud.JobsSubscription].Timeout())
	assert.Equal(t, "flexvault-uploads-finalized-sub", config.TopicSubscriptions[cloud.ObjectCreatedSubscription].Name)
}
