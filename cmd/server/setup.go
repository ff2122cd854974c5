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

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jaycherian/gcp-go-flexvault/internal/api"
	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/services"
)

// StateManager holds the shared components of the server.
type StateManager struct {
	config *cloud.Config
	cloud  *cloud.ServiceClients
	deps   *api.Dependencies
}

var state = &StateManager{}

// SetupOS points the configuration loader at ./configs with the "local"
// runtime, unless the deployment already set either variable.
func SetupOS() (err error) {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		// Create a default cloud config
		config := cloud.NewConfig()
		// Load it from the TOML files
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		cloud.ApplyEnvOverrides(config)
		state.config = config
	}
	return state.config
}

// InitState creates the cloud clients and the services the routes depend on.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	federated, err := services.NewFederatedSignIn(cloudClients.Identity, cloudClients.GoogleVerifier, config.Identity.GoogleAuthSecret)
	if err != nil {
		cloudClients.Close()
		return fmt.Errorf("%w: set %s or identity.google_auth_secret", err, cloud.EnvGoogleAuthSecret)
	}

	state.deps = &api.Dependencies{
		Identity:  services.NewIdentityService(cloudClients.Identity),
		Federated: federated,
		Files: &services.FileService{
			Signer:         cloudClients.Signer,
			Uploads:        cloudClients.Uploads,
			Files:          cloudClients.Files,
			UploadExpiry:   config.Storage.UploadExpiry(),
			DownloadExpiry: config.Storage.DownloadExpiry(),
			UploadTTL:      config.Firestore.UploadTTL(),
		},
		AuthRequestsPerSecond: config.Server.AuthRequestsPerSecond,
		AuthBurst:             config.Server.AuthBurst,
	}
	return nil
}
