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

// Package cloud provides components for interacting with Google Cloud services.
// This file is responsible for initializing and holding all the client objects
// needed to communicate with Google Cloud. It acts as a dependency injection
// container: a single `ServiceClients` struct is created at startup and handed
// to the services, workflows and listeners that need it.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the loaded `Config`.
//  2. It creates the raw clients: Storage, Pub/Sub, Firestore, IAM Credentials,
//     Firebase Auth and the Identity Toolkit REST service.
//  3. It builds the adapters the application talks to: the URL signer, the
//     Firestore stores, the job queue and the rate limited identity provider.
//  4. It creates one Pub/Sub listener per configured subscription. Their
//     commands are attached later when the workflows are built.
//
// Structs:
//   - ServiceClients: A container holding the clients and adapters.
//
// Functions:
//   - Close: Releases every client connection.
//   - NewCloudServiceClients: Creates and configures everything from the configuration.
package cloud

import (
	"context"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// ServiceClients acts as a central container for all the clients that interact
// with Google Cloud, and for the adapters built on top of them.
type ServiceClients struct {
	StorageClient   *storage.Client                   // Client for Google Cloud Storage (GCS).
	PubsubClient    *pubsub.Client                    // Client for Google Cloud Pub/Sub.
	FirestoreClient *firestore.Client                 // Client for the Firestore database holding file metadata.
	IAMClient       *credentials.IamCredentialsClient // Client for IAM to sign GCS URLs; nil when signing with local keys.
	AuthClient      *auth.Client                      // Firebase Admin client for Identity Platform.
	IdentityToolkit *identitytoolkit.Service          // REST client for the end-user identity flows.

	Signer          *GCSSigner                  // Presigns upload and download URLs.
	Files           *FirestoreFileStore         // File records.
	Uploads         *FirestoreUploadStore       // Pending upload records.
	Jobs            *PubSubJobQueue             // Publishes tagging jobs.
	Identity        *QuotaAwareIdentityProvider // Rate limited Identity Platform adapter.
	GoogleVerifier  *GoogleTokenVerifier        // Validates Google ID tokens for federated sign-in.
	PubSubListeners map[string]*PubSubListener  // Active Pub/Sub listeners, keyed by a logical name from the config.
}

// Close is a utility method to gracefully shut down all the active client connections.
func (c *ServiceClients) Close() {
	if c.Jobs != nil {
		c.Jobs.Stop()
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.FirestoreClient != nil {
		_ = c.FirestoreClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients initializes all required Google Cloud service clients
// based on the provided configuration.
//
// Inputs:
//   - ctx: The root context.Context for the application, used to manage the lifecycle of the clients.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the fully initialized ServiceClients struct.
//   - error: An error if any of the clients fail to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{PubSubListeners: make(map[string]*PubSubListener)}
	defer func() {
		if err != nil {
			cloud.Close()
			cloud = nil
		}
	}()

	projectID := config.Application.GoogleProjectId

	if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
		return cloud, err
	}

	if cloud.PubsubClient, err = pubsub.NewClient(ctx, projectID); err != nil {
		return cloud, err
	}

	database := config.Firestore.Database
	if len(database) == 0 {
		database = firestore.DefaultDatabaseID
	}
	if cloud.FirestoreClient, err = firestore.NewClientWithDatabase(ctx, projectID, database); err != nil {
		return cloud, err
	}

	// Without a signer account the storage client signs with the key of its
	// own credentials, which only works for service account key files.
	if len(config.Application.SignerServiceAccountEmail) > 0 {
		if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
			return cloud, err
		}
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return cloud, err
	}
	if cloud.AuthClient, err = app.Auth(ctx); err != nil {
		return cloud, err
	}

	if cloud.IdentityToolkit, err = identitytoolkit.NewService(ctx, option.WithAPIKey(config.Identity.ApiKey)); err != nil {
		return cloud, err
	}

	cloud.Signer = NewGCSSigner(cloud.StorageClient, cloud.IAMClient,
		config.Application.SignerServiceAccountEmail, config.Storage.UploadBucket)
	if len(config.Storage.SignerKeyFile) > 0 {
		if cloud.Signer.PrivateKey, err = os.ReadFile(config.Storage.SignerKeyFile); err != nil {
			return cloud, err
		}
	}
	cloud.Files = NewFirestoreFileStore(cloud.FirestoreClient, config.Firestore.FilesCollection)
	cloud.Uploads = NewFirestoreUploadStore(cloud.FirestoreClient, config.Firestore.UploadsCollection)
	cloud.Jobs = NewPubSubJobQueue(cloud.PubsubClient, config.Topics.Jobs)
	cloud.Identity = NewQuotaAwareIdentityProvider(
		NewIdentityPlatform(cloud.IdentityToolkit, cloud.AuthClient, config.Identity.ApiKey),
		config.Identity.RequestsPerSecond)
	cloud.GoogleVerifier = NewGoogleTokenVerifier(config.Identity.GoogleClientId)

	// The command is initially nil; it is attached when the workflows are built.
	for subKey, values := range config.TopicSubscriptions {
		listener, err := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
		if err != nil {
			return cloud, err
		}
		listener.SetTimeout(values.Timeout())
		cloud.PubSubListeners[subKey] = listener
	}

	slog.Info("cloud clients ready",
		"project", projectID,
		"bucket", config.Storage.UploadBucket,
		"listeners", len(cloud.PubSubListeners))
	return cloud, nil
}
