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

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file defines the payload Cloud Storage publishes when an object is finalized,
// and its conversion into the pipeline's `model.StoredObject`.
//
// Structs:
//   - GCSPubSubNotification: Maps to the JSON object resource sent by GCS notifications,
//     both through Pub/Sub and as the data of a `storage.object.v1.finalized` CloudEvent.
package cloud

import (
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// Attributes Cloud Storage puts on its Pub/Sub notifications.
const (
	NotificationEventTypeAttribute = "eventType"
	EventObjectFinalize            = "OBJECT_FINALIZE"
)

// GCSPubSubNotification is the object resource sent by Cloud Storage when an
// object is created or overwritten.
type GCSPubSubNotification struct {
	Kind           string                 `json:"kind"`           // Typically "storage#object".
	ID             string                 `json:"id"`             // Bucket, name and generation.
	SelfLink       string                 `json:"selfLink"`       // The URI for this object.
	Name           string                 `json:"name"`           // The object name, e.g. "u1/1718000000000-doc.pdf".
	Bucket         string                 `json:"bucket"`         // The bucket containing the object.
	Generation     string                 `json:"generation"`     // The generation of the object's content.
	MetaGeneration string                 `json:"metageneration"` // The generation of the object's metadata.
	ContentType    string                 `json:"contentType"`    // The MIME type of the object's content.
	TimeCreated    string                 `json:"timeCreated"`    // The creation time of the object.
	Updated        string                 `json:"updated"`        // The last modification time of the object.
	StorageClass   string                 `json:"storageClass"`   // The storage class of the object.
	Size           json.Number            `json:"size"`           // The byte size; GCS sends it as a decimal string.
	MD5Hash        string                 `json:"md5Hash"`        // The MD5 hash of the object's content.
	MediaLink      string                 `json:"mediaLink"`      // A link to download the object's content.
	MetaData       map[string]interface{} `json:"metadata"`       // Custom metadata, e.g. "flexvault-user".
	Crc32c         string                 `json:"crc32c"`         // The CRC32C checksum of the object's content.
	ETag           string                 `json:"etag"`           // The HTTP ETag of the object.
}

// ToStoredObject distills the notification into what the pipeline needs. The
// owner is taken from the first segment of the object name.
//
// Outputs:
//   - *model.StoredObject: The bucket, key, owner, size and content type.
//   - error: If the name has no owner segment or the size is not an integer.
func (n *GCSPubSubNotification) ToStoredObject() (*model.StoredObject, error) {
	owner, err := model.OwnerFromKey(n.Name)
	if err != nil {
		return nil, fmt.Errorf("invalid object name %q: %w", n.Name, err)
	}

	var size int64
	if len(n.Size) > 0 {
		size, err = n.Size.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid size %q for %s: %w", n.Size, n.Name, err)
		}
	}

	return &model.StoredObject{
		Bucket:      n.Bucket,
		Key:         n.Name,
		OwnerID:     owner,
		Size:        size,
		ContentType: n.ContentType,
	}, nil
}
