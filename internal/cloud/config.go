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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings for
// the HTTP server, Cloud Storage, Firestore, Pub/Sub and Identity Platform.
//
// Structs:
//   - Server: HTTP listener and rate limit settings.
//   - Storage: The upload bucket and signed URL lifetimes.
//   - Firestore: Database and collection names and the pending upload TTL.
//   - Topics: Pub/Sub topics the application publishes to.
//   - TopicSubscription: Configuration for a single Pub/Sub subscription.
//   - Identity: Identity Platform and Google sign-in settings.
//   - Config: The top-level struct that aggregates all other configuration structs.
//
// Functions:
//   - NewConfig: A constructor that returns a Config populated with defaults.
package cloud

import "time"

// Default values applied by NewConfig. The TOML files override them.
const (
	DefaultPort                  = 8080
	DefaultShutdownTimeout       = 5
	DefaultUploadExpirySeconds   = 900
	DefaultDownloadExpirySeconds = 600
	DefaultUploadTTLSeconds      = 3600
	DefaultFilesCollection       = "files"
	DefaultUploadsCollection     = "uploads"
)

// Server holds the HTTP server settings.
type Server struct {
	Port                   int     `toml:"port"`                     // The port the HTTP server listens on.
	ShutdownTimeoutSeconds int     `toml:"shutdown_timeout_seconds"` // Grace period for in-flight requests on shutdown.
	AuthRequestsPerSecond  float64 `toml:"auth_requests_per_second"` // Rate limit applied to the /auth routes.
	AuthBurst              int     `toml:"auth_burst"`               // Burst size for the /auth rate limit.
}

// ShutdownTimeout returns the grace period for in-flight requests.
func (s Server) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// Storage represents the configuration for the upload bucket.
type Storage struct {
	UploadBucket          string `toml:"upload_bucket"`           // The bucket receiving direct uploads.
	UploadExpirySeconds   int    `toml:"upload_expiry_seconds"`   // Lifetime of a signed PUT URL.
	DownloadExpirySeconds int    `toml:"download_expiry_seconds"` // Lifetime of a signed GET URL.
	SignerKeyFile         string `toml:"signer_key_file"`         // Optional PEM key of the signer account; signs locally instead of via IAM.
}

// UploadExpiry returns the signed PUT URL lifetime.
func (s Storage) UploadExpiry() time.Duration {
	return time.Duration(s.UploadExpirySeconds) * time.Second
}

// DownloadExpiry returns the signed GET URL lifetime.
func (s Storage) DownloadExpiry() time.Duration {
	return time.Duration(s.DownloadExpirySeconds) * time.Second
}

// Firestore represents the configuration of the key-value store.
type Firestore struct {
	Database          string `toml:"database"`           // The Firestore database ID; empty means "(default)".
	FilesCollection   string `toml:"files_collection"`   // Collection holding file records.
	UploadsCollection string `toml:"uploads_collection"` // Collection holding pending upload records.
	UploadTTLSeconds  int    `toml:"upload_ttl_seconds"` // How long a pending upload record lives.
}

// UploadTTL returns the lifetime of a pending upload record.
func (f Firestore) UploadTTL() time.Duration {
	return time.Duration(f.UploadTTLSeconds) * time.Second
}

// Topics lists the Pub/Sub topics the application publishes to.
type Topics struct {
	Jobs string `toml:"jobs"` // The tagging jobs topic.
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The dead-letter topic configured on the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Maximum time spent on one message.
}

// Identity holds the Identity Platform settings.
type Identity struct {
	ApiKey            string  `toml:"api_key"`             // Web API key used for the end-user REST flows.
	GoogleClientId    string  `toml:"google_client_id"`    // Audience expected in Google ID tokens.
	GoogleAuthSecret  string  `toml:"google_auth_secret"`  // HMAC key for derived federated passwords.
	RequestsPerSecond float64 `toml:"requests_per_second"` // Client side limit on Identity Platform calls; 0 disables it.
}

// Timeout is the per message processing limit; zero means none.
func (t TopicSubscription) Timeout() time.Duration {
	return time.Duration(t.TimeoutInSeconds) * time.Second
}

// Names of the subscriptions the server listens on.
const (
	ObjectCreatedSubscription = "ObjectCreatedTopic"
	JobsSubscription          = "JobsTopic"
)

// Config represents the overall configuration for the application, loaded from TOML files.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string  `toml:"name"`                         // The name of the application.
		GoogleProjectId           string  `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string  `toml:"location"`                     // The Google Cloud location.
		SignerServiceAccountEmail string  `toml:"signer_service_account_email"` // The service account used for signing GCS URLs.
		TelemetryEnabled          bool    `toml:"telemetry_enabled"`            // Export traces and metrics to Cloud Trace and Cloud Monitoring.
		TraceSampleRatio          float64 `toml:"trace_sample_ratio"`           // Fraction of root spans sampled; 0 or 1 samples all.
	} `toml:"application"`
	Server             Server                       `toml:"server"`
	Storage            Storage                      `toml:"storage"`
	Firestore          Firestore                    `toml:"firestore"`
	Topics             Topics                       `toml:"topics"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by a logical name, e.g. "JobsTopic".
	Identity           Identity                     `toml:"identity"`
}

// NewConfig creates a Config with defaults filled in and its maps initialized,
// ready to be overlaid by LoadConfig.
func NewConfig() *Config {
	config := &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
	}
	config.Server.Port = DefaultPort
	config.Server.ShutdownTimeoutSeconds = DefaultShutdownTimeout
	config.Storage.UploadExpirySeconds = DefaultUploadExpirySeconds
	config.Storage.DownloadExpirySeconds = DefaultDownloadExpirySeconds
	config.Firestore.FilesCollection = DefaultFilesCollection
	config.Firestore.UploadsCollection = DefaultUploadsCollection
	config.Firestore.UploadTTLSeconds = DefaultUploadTTLSeconds
	return config
}
