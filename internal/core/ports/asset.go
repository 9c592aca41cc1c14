package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/asset"
)

// AssetRepository defines durable storage of asset records.
type AssetRepository interface {
	Create(ctx context.Context, a *asset.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error)
}

// IngestionService is the upload/delete workflow built on the admission
// gate, the quota accountant and the external object store.
type IngestionService interface {
	// Upload admits the request, validates size and format, reserves quota,
	// stores the bytes and persists the asset record. Any failure after the
	// reservation triggers a compensating release before the error surfaces.
	Upload(ctx context.Context, secret string, data []byte, fileName string) (*asset.Asset, error)
	// Delete removes the object from external storage, releases the asset's
	// recorded reservation, then removes the record. If the external delete
	// fails the record is kept and nothing is released.
	Delete(ctx context.Context, id uuid.UUID) error
	GetAsset(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	ListAssets(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error)
}
