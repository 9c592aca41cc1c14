package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/asset"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
	"github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/db"
)

// AssetRepository implements the asset repository interface over Postgres.
type AssetRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(database *db.Database, logger *logrus.Logger) ports.AssetRepository {
	return &AssetRepository{
		db:     database,
		logger: logger,
	}
}

// Create inserts a new asset record.
func (r *AssetRepository) Create(ctx context.Context, a *asset.Asset) error {
	query := `
		INSERT INTO assets (id, client_id, file_name, storage_key, url, size_bytes, reserved_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.DB.QueryRowContext(ctx, query,
		a.ID, a.ClientID, a.FileName, a.StorageKey, a.URL, a.SizeBytes, a.ReservedBytes,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetByID retrieves an asset by ID.
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	var a asset.Asset
	query := `
		SELECT id, client_id, file_name, storage_key, url, size_bytes, reserved_bytes, created_at
		FROM assets
		WHERE id = $1`

	err := r.db.DB.GetContext(ctx, &a, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, asset.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return &a, nil
}

// Delete removes an asset record.
func (r *AssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM assets WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return requireRow(result, asset.ErrNotFound)
}

// ListByClient retrieves a client's assets with pagination.
func (r *AssetRepository) ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error) {
	var assets []*asset.Asset
	query := `
		SELECT id, client_id, file_name, storage_key, url, size_bytes, reserved_bytes, created_at
		FROM assets
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.DB.SelectContext(ctx, &assets, query, clientID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	return assets, nil
}
