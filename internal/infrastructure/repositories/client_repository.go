package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
	"github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/db"
)

// ClientRepository implements the client repository interface over Postgres.
type ClientRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewClientRepository creates a new client repository
func NewClientRepository(database *db.Database, logger *logrus.Logger) ports.ClientRepository {
	return &ClientRepository{
		db:     database,
		logger: logger,
	}
}

const clientColumns = `id, name, api_key, secret, is_active, max_storage_bytes, used_storage_bytes,
		max_asset_bytes, allowed_formats, rate_limit_per_hour, last_access_at, created_at, updated_at`

// Create inserts a new client and fills in its assigned ID.
func (r *ClientRepository) Create(ctx context.Context, c *client.Client) error {
	formatsJSON, err := json.Marshal(c.AllowedFormats)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed formats: %w", err)
	}

	query := `
		INSERT INTO clients (name, api_key, secret, is_active, max_storage_bytes, used_storage_bytes,
			max_asset_bytes, allowed_formats, rate_limit_per_hour)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err = r.db.DB.QueryRowContext(ctx, query,
		c.Name, c.APIKey, c.Secret, c.IsActive, c.MaxStorageBytes, c.UsedStorageBytes,
		c.MaxAssetBytes, formatsJSON, c.RateLimitPerHour,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// GetByID retrieves a client by ID.
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*client.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE id = $1`, clientColumns)
	return r.scanClient(r.db.DB.QueryRowContext(ctx, query, id))
}

// GetBySecret retrieves the active client owning the secret. Inactive
// clients are invisible here on purpose: the resolver treats them the same
// as unknown secrets.
func (r *ClientRepository) GetBySecret(ctx context.Context, secret string) (*client.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE secret = $1 AND is_active = TRUE`, clientColumns)
	return r.scanClient(r.db.DB.QueryRowContext(ctx, query, secret))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ClientRepository) scanClient(row rowScanner) (*client.Client, error) {
	var c client.Client
	var formatsJSON sql.NullString

	err := row.Scan(
		&c.ID, &c.Name, &c.APIKey, &c.Secret, &c.IsActive, &c.MaxStorageBytes, &c.UsedStorageBytes,
		&c.MaxAssetBytes, &formatsJSON, &c.RateLimitPerHour, &c.LastAccessAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, client.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if formatsJSON.Valid && formatsJSON.String != "" {
		if err := json.Unmarshal([]byte(formatsJSON.String), &c.AllowedFormats); err != nil {
			return nil, fmt.Errorf("failed to parse allowed formats: %w", err)
		}
	}

	return &c, nil
}

// List retrieves clients with pagination.
func (r *ClientRepository) List(ctx context.Context, limit, offset int) ([]*client.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`, clientColumns)

	rows, err := r.db.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*client.Client
	for rows.Next() {
		c, err := r.scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}

	return clients, nil
}

// SetCredentials replaces the secret/apiKey pair in a single statement.
func (r *ClientRepository) SetCredentials(ctx context.Context, id int64, apiKey, secret string) error {
	query := `UPDATE clients SET api_key = $2, secret = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, apiKey, secret)
	if err != nil {
		return fmt.Errorf("failed to set credentials: %w", err)
	}
	return requireRow(result, client.ErrNotFound)
}

// SetActive flips the active flag.
func (r *ClientRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE clients SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set active flag: %w", err)
	}
	return requireRow(result, client.ErrNotFound)
}

// SetLastAccess records the advisory access timestamp.
func (r *ClientRepository) SetLastAccess(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE clients SET last_access_at = $2 WHERE id = $1`

	if _, err := r.db.DB.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to set last access: %w", err)
	}
	return nil
}

// IncrementUsedStorage adds delta to used_storage_bytes only when the
// result stays within max_storage_bytes. The quota comparison and the
// increment are one conditional UPDATE so two concurrent reservations near
// the ceiling cannot both pass a stale snapshot check.
func (r *ClientRepository) IncrementUsedStorage(ctx context.Context, id int64, delta int64) (bool, error) {
	query := `
		UPDATE clients
		SET used_storage_bytes = used_storage_bytes + $2, updated_at = NOW()
		WHERE id = $1 AND used_storage_bytes + $2 <= max_storage_bytes`

	result, err := r.db.DB.ExecContext(ctx, query, id, delta)
	if err != nil {
		return false, fmt.Errorf("failed to increment used storage: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ReleaseUsedStorage subtracts delta with a floor of zero and reports
// whether the floor clamped the subtraction.
func (r *ClientRepository) ReleaseUsedStorage(ctx context.Context, id int64, delta int64) (int64, bool, error) {
	query := `
		WITH prev AS (
			SELECT used_storage_bytes FROM clients WHERE id = $1 FOR UPDATE
		)
		UPDATE clients c
		SET used_storage_bytes = GREATEST(c.used_storage_bytes - $2, 0), updated_at = NOW()
		FROM prev
		WHERE c.id = $1
		RETURNING c.used_storage_bytes, prev.used_storage_bytes`

	var newUsed, prevUsed int64
	err := r.db.DB.QueryRowContext(ctx, query, id, delta).Scan(&newUsed, &prevUsed)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, client.ErrNotFound
		}
		return 0, false, fmt.Errorf("failed to release used storage: %w", err)
	}

	return newUsed, prevUsed < delta, nil
}

func requireRow(result sql.Result, missing error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return missing
	}
	return nil
}
