// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package saga holds the data model and collaborator ports of the asset saga core:
// saga types and statuses, the durable SagaRecord, the per-operation State shapes and
// their versioned codec, and the interfaces the orchestrator consumes.
package saga

import (
	"context"
	"time"
)

// PermissionValidator answers whether an identity may exercise a capability.
// A false answer with a nil error is a denial; a non-nil error means the check
// itself could not be carried out.
type PermissionValidator interface {
	Validate(ctx context.Context, identityToken string, capability Capability) (bool, error)
}

// AssetStore is the domain-mutation collaborator.
type AssetStore interface {
	// Create inserts a new asset. A non-empty asset.ID is used as the identity.
	Create(ctx context.Context, asset *Asset) (string, error)

	// Get returns the asset or ErrAssetNotFound.
	Get(ctx context.Context, id string) (*Asset, error)

	// Update overwrites the fields named in mask with the values from fields.
	Update(ctx context.Context, id string, fields AssetFields, mask []string) error

	// Delete removes the asset or returns ErrAssetNotFound.
	Delete(ctx context.Context, id string) error

	// Restore re-inserts a previously deleted asset with its original identity.
	// It returns ErrAssetExists if an asset with that id is present.
	Restore(ctx context.Context, asset *Asset) error
}

// EventAnnouncer publishes domain events. Delivery is at least once.
type EventAnnouncer interface {
	Publish(ctx context.Context, eventType EventType, payload interface{}, correlationID string) error
}

// AssetEvent is the payload announced by the last step of every saga.
type AssetEvent struct {
	SagaID        string    `json:"sagaId"`
	AssetID       string    `json:"assetId"`
	Asset         *Asset    `json:"asset,omitempty"`
	ChangedFields []string  `json:"changedFields,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}
