package ports

import (
	"context"
	"time"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
)

// ClientRepository is the durable record of clients. Storage-counter
// mutations are single conditional statements at the store, never
// application-level read-modify-write; see IncrementUsedStorage.
type ClientRepository interface {
	Create(ctx context.Context, c *client.Client) error
	GetByID(ctx context.Context, id int64) (*client.Client, error)
	// GetBySecret returns the active client owning secret, or
	// client.ErrNotFound when no active client matches.
	GetBySecret(ctx context.Context, secret string) (*client.Client, error)
	List(ctx context.Context, limit, offset int) ([]*client.Client, error)
	// SetCredentials replaces the secret/apiKey pair in one statement.
	SetCredentials(ctx context.Context, id int64, apiKey, secret string) error
	SetActive(ctx context.Context, id int64, active bool) error
	// SetLastAccess is advisory bookkeeping; failures are loggable, not fatal.
	SetLastAccess(ctx context.Context, id int64, at time.Time) error
	// IncrementUsedStorage atomically adds delta to used_storage_bytes only
	// if the result stays within max_storage_bytes. Returns false (and no
	// mutation) otherwise.
	IncrementUsedStorage(ctx context.Context, id int64, delta int64) (bool, error)
	// ReleaseUsedStorage subtracts delta from used_storage_bytes, clamped at
	// zero. clamped=true means the counter held less than delta before the
	// update, i.e. accounting had already drifted.
	ReleaseUsedStorage(ctx context.Context, id int64, delta int64) (newUsed int64, clamped bool, err error)
}

// CredentialResolver is the cache-aside lookup in front of ClientRepository,
// keyed by secret. Resolve serves bounded-TTL snapshots; Invalidate removes
// an entry unconditionally and must be acknowledged before any
// credential-affecting write reports success to its caller.
type CredentialResolver interface {
	Resolve(ctx context.Context, secret string) (*client.Client, error)
	Invalidate(ctx context.Context, secret string) error
}

// ClientService defines the administrative provisioning surface.
type ClientService interface {
	CreateClient(ctx context.Context, req *client.CreateClientRequest) (*client.Client, *client.Credentials, error)
	GetClient(ctx context.Context, id int64) (*client.Client, error)
	ListClients(ctx context.Context, limit, offset int) ([]*client.Client, error)
	// RotateCredentials issues a fresh secret/apiKey pair and invalidates the
	// cached entry for the old secret before returning.
	RotateCredentials(ctx context.Context, id int64) (*client.Credentials, error)
	SetClientActive(ctx context.Context, id int64, active bool) error
}
