package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/asset"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
)

// ClientRepositoryMock is a lightweight mock for ClientRepository
type ClientRepositoryMock struct {
	CreateFn               func(ctx context.Context, c *client.Client) error
	GetByIDFn              func(ctx context.Context, id int64) (*client.Client, error)
	GetBySecretFn          func(ctx context.Context, secret string) (*client.Client, error)
	ListFn                 func(ctx context.Context, limit, offset int) ([]*client.Client, error)
	SetCredentialsFn       func(ctx context.Context, id int64, apiKey, secret string) error
	SetActiveFn            func(ctx context.Context, id int64, active bool) error
	SetLastAccessFn        func(ctx context.Context, id int64, at time.Time) error
	IncrementUsedStorageFn func(ctx context.Context, id int64, delta int64) (bool, error)
	ReleaseUsedStorageFn   func(ctx context.Context, id int64, delta int64) (int64, bool, error)
}

func (m *ClientRepositoryMock) Create(ctx context.Context, c *client.Client) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, c)
	}
	return nil
}
func (m *ClientRepositoryMock) GetByID(ctx context.Context, id int64) (*client.Client, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, client.ErrNotFound
}
func (m *ClientRepositoryMock) GetBySecret(ctx context.Context, secret string) (*client.Client, error) {
	if m.GetBySecretFn != nil {
		return m.GetBySecretFn(ctx, secret)
	}
	return nil, client.ErrNotFound
}
func (m *ClientRepositoryMock) List(ctx context.Context, limit, offset int) ([]*client.Client, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, limit, offset)
	}
	return nil, nil
}
func (m *ClientRepositoryMock) SetCredentials(ctx context.Context, id int64, apiKey, secret string) error {
	if m.SetCredentialsFn != nil {
		return m.SetCredentialsFn(ctx, id, apiKey, secret)
	}
	return nil
}
func (m *ClientRepositoryMock) SetActive(ctx context.Context, id int64, active bool) error {
	if m.SetActiveFn != nil {
		return m.SetActiveFn(ctx, id, active)
	}
	return nil
}
func (m *ClientRepositoryMock) SetLastAccess(ctx context.Context, id int64, at time.Time) error {
	if m.SetLastAccessFn != nil {
		return m.SetLastAccessFn(ctx, id, at)
	}
	return nil
}
func (m *ClientRepositoryMock) IncrementUsedStorage(ctx context.Context, id int64, delta int64) (bool, error) {
	if m.IncrementUsedStorageFn != nil {
		return m.IncrementUsedStorageFn(ctx, id, delta)
	}
	return true, nil
}
func (m *ClientRepositoryMock) ReleaseUsedStorage(ctx context.Context, id int64, delta int64) (int64, bool, error) {
	if m.ReleaseUsedStorageFn != nil {
		return m.ReleaseUsedStorageFn(ctx, id, delta)
	}
	return 0, false, nil
}

// MemoryClientStore is a concurrency-safe in-memory ClientRepository with
// the same conditional-update semantics as the Postgres implementation.
// Useful for exercising reserve/release interleavings without a database.
type MemoryClientStore struct {
	mu      sync.Mutex
	nextID  int64
	Clients map[int64]*client.Client
}

func NewMemoryClientStore() *MemoryClientStore {
	return &MemoryClientStore{Clients: make(map[int64]*client.Client)}
}

func (s *MemoryClientStore) Create(ctx context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	s.Clients[c.ID] = &cp
	return nil
}

func (s *MemoryClientStore) GetByID(ctx context.Context, id int64) (*client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Clients[id]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryClientStore) GetBySecret(ctx context.Context, secret string) (*client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.Clients {
		if c.Secret == secret && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, client.ErrNotFound
}

func (s *MemoryClientStore) List(ctx context.Context, limit, offset int) ([]*client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*client.Client
	for _, c := range s.Clients {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryClientStore) SetCredentials(ctx context.Context, id int64, apiKey, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Clients[id]
	if !ok {
		return client.ErrNotFound
	}
	c.APIKey = apiKey
	c.Secret = secret
	return nil
}

func (s *MemoryClientStore) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Clients[id]
	if !ok {
		return client.ErrNotFound
	}
	c.IsActive = active
	return nil
}

func (s *MemoryClientStore) SetLastAccess(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.Clients[id]; ok {
		c.LastAccessAt = &at
	}
	return nil
}

func (s *MemoryClientStore) IncrementUsedStorage(ctx context.Context, id int64, delta int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Clients[id]
	if !ok {
		return false, nil
	}
	if c.UsedStorageBytes+delta > c.MaxStorageBytes {
		return false, nil
	}
	c.UsedStorageBytes += delta
	return true, nil
}

func (s *MemoryClientStore) ReleaseUsedStorage(ctx context.Context, id int64, delta int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Clients[id]
	if !ok {
		return 0, false, client.ErrNotFound
	}
	clamped := c.UsedStorageBytes < delta
	c.UsedStorageBytes -= delta
	if c.UsedStorageBytes < 0 {
		c.UsedStorageBytes = 0
	}
	return c.UsedStorageBytes, clamped, nil
}

// MemoryCache is a deterministic in-memory Cache (TTL is recorded but not
// enforced, so tests control expiry by deleting keys).
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	Deleted []string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[key]
	return b, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.Deleted = append(c.Deleted, key)
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheMock is a func-field Cache mock for error injection.
type CacheMock struct {
	GetFn    func(ctx context.Context, key string) ([]byte, bool, error)
	SetFn    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFn func(ctx context.Context, key string) error
}

func (m *CacheMock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	return nil, false, nil
}
func (m *CacheMock) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFn != nil {
		return m.SetFn(ctx, key, value, ttl)
	}
	return nil
}
func (m *CacheMock) Delete(ctx context.Context, key string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}
	return nil
}

// RateLimitRepositoryMock mocks the atomic window counter.
type RateLimitRepositoryMock struct {
	IncrementWindowFn func(ctx context.Context, clientID int64, window time.Duration, keyPrefix string, ttl time.Duration) (int64, time.Time, error)
}

func (m *RateLimitRepositoryMock) IncrementWindow(ctx context.Context, clientID int64, window time.Duration, keyPrefix string, ttl time.Duration) (int64, time.Time, error) {
	if m.IncrementWindowFn != nil {
		return m.IncrementWindowFn(ctx, clientID, window, keyPrefix, ttl)
	}
	return 1, time.Now().Truncate(window), nil
}

// RateLimiterServiceMock mocks the limiter decision.
type RateLimiterServiceMock struct {
	AllowFn func(ctx context.Context, clientID int64, limit int) (bool, int64, time.Time, error)
}

func (m *RateLimiterServiceMock) Allow(ctx context.Context, clientID int64, limit int) (bool, int64, time.Time, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, clientID, limit)
	}
	return true, 1, time.Now().Add(time.Hour), nil
}

// QuotaAccountantMock mocks storage accounting.
type QuotaAccountantMock struct {
	ReserveFn func(ctx context.Context, clientID int64, sizeBytes int64) (int64, error)
	ReleaseFn func(ctx context.Context, clientID int64, sizeBytes int64) (int64, error)
}

func (m *QuotaAccountantMock) Reserve(ctx context.Context, clientID int64, sizeBytes int64) (int64, error) {
	if m.ReserveFn != nil {
		return m.ReserveFn(ctx, clientID, sizeBytes)
	}
	return sizeBytes, nil
}
func (m *QuotaAccountantMock) Release(ctx context.Context, clientID int64, sizeBytes int64) (int64, error) {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(ctx, clientID, sizeBytes)
	}
	return sizeBytes, nil
}

// CredentialResolverMock mocks secret resolution.
type CredentialResolverMock struct {
	ResolveFn    func(ctx context.Context, secret string) (*client.Client, error)
	InvalidateFn func(ctx context.Context, secret string) error
}

func (m *CredentialResolverMock) Resolve(ctx context.Context, secret string) (*client.Client, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, secret)
	}
	return nil, client.ErrNotFound
}
func (m *CredentialResolverMock) Invalidate(ctx context.Context, secret string) error {
	if m.InvalidateFn != nil {
		return m.InvalidateFn(ctx, secret)
	}
	return nil
}

// AdmissionServiceMock mocks the gate.
type AdmissionServiceMock struct {
	AdmitFn func(ctx context.Context, secret string) (*client.Client, error)
}

func (m *AdmissionServiceMock) Admit(ctx context.Context, secret string) (*client.Client, error) {
	if m.AdmitFn != nil {
		return m.AdmitFn(ctx, secret)
	}
	return nil, client.ErrNotFound
}

// AssetRepositoryMock mocks asset record storage.
type AssetRepositoryMock struct {
	CreateFn       func(ctx context.Context, a *asset.Asset) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	DeleteFn       func(ctx context.Context, id uuid.UUID) error
	ListByClientFn func(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error)
}

func (m *AssetRepositoryMock) Create(ctx context.Context, a *asset.Asset) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}
func (m *AssetRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, asset.ErrNotFound
}
func (m *AssetRepositoryMock) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}
func (m *AssetRepositoryMock) ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error) {
	if m.ListByClientFn != nil {
		return m.ListByClientFn(ctx, clientID, limit, offset)
	}
	return nil, nil
}

// IngestionServiceMock mocks the upload/delete workflow for handler tests.
type IngestionServiceMock struct {
	UploadFn     func(ctx context.Context, secret string, data []byte, fileName string) (*asset.Asset, error)
	DeleteFn     func(ctx context.Context, id uuid.UUID) error
	GetAssetFn   func(ctx context.Context, id uuid.UUID) (*asset.Asset, error)
	ListAssetsFn func(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error)
}

func (m *IngestionServiceMock) Upload(ctx context.Context, secret string, data []byte, fileName string) (*asset.Asset, error) {
	if m.UploadFn != nil {
		return m.UploadFn(ctx, secret, data, fileName)
	}
	return nil, asset.ErrNotFound
}
func (m *IngestionServiceMock) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}
func (m *IngestionServiceMock) GetAsset(ctx context.Context, id uuid.UUID) (*asset.Asset, error) {
	if m.GetAssetFn != nil {
		return m.GetAssetFn(ctx, id)
	}
	return nil, asset.ErrNotFound
}
func (m *IngestionServiceMock) ListAssets(ctx context.Context, clientID int64, limit, offset int) ([]*asset.Asset, error) {
	if m.ListAssetsFn != nil {
		return m.ListAssetsFn(ctx, clientID, limit, offset)
	}
	return nil, nil
}

// ClientServiceMock mocks the provisioning surface for handler tests.
type ClientServiceMock struct {
	CreateClientFn      func(ctx context.Context, req *client.CreateClientRequest) (*client.Client, *client.Credentials, error)
	GetClientFn         func(ctx context.Context, id int64) (*client.Client, error)
	ListClientsFn       func(ctx context.Context, limit, offset int) ([]*client.Client, error)
	RotateCredentialsFn func(ctx context.Context, id int64) (*client.Credentials, error)
	SetClientActiveFn   func(ctx context.Context, id int64, active bool) error
}

func (m *ClientServiceMock) CreateClient(ctx context.Context, req *client.CreateClientRequest) (*client.Client, *client.Credentials, error) {
	if m.CreateClientFn != nil {
		return m.CreateClientFn(ctx, req)
	}
	return nil, nil, client.ErrNotFound
}
func (m *ClientServiceMock) GetClient(ctx context.Context, id int64) (*client.Client, error) {
	if m.GetClientFn != nil {
		return m.GetClientFn(ctx, id)
	}
	return nil, client.ErrNotFound
}
func (m *ClientServiceMock) ListClients(ctx context.Context, limit, offset int) ([]*client.Client, error) {
	if m.ListClientsFn != nil {
		return m.ListClientsFn(ctx, limit, offset)
	}
	return nil, nil
}
func (m *ClientServiceMock) RotateCredentials(ctx context.Context, id int64) (*client.Credentials, error) {
	if m.RotateCredentialsFn != nil {
		return m.RotateCredentialsFn(ctx, id)
	}
	return nil, client.ErrNotFound
}
func (m *ClientServiceMock) SetClientActive(ctx context.Context, id int64, active bool) error {
	if m.SetClientActiveFn != nil {
		return m.SetClientActiveFn(ctx, id, active)
	}
	return nil
}

// ObjectStorageMock mocks the external uploader.
type ObjectStorageMock struct {
	PutFn    func(ctx context.Context, key string, data []byte) (string, error)
	DeleteFn func(ctx context.Context, key string) error
}

func (m *ObjectStorageMock) Put(ctx context.Context, key string, data []byte) (string, error) {
	if m.PutFn != nil {
		return m.PutFn(ctx, key, data)
	}
	return "https://cdn.example.com/" + key, nil
}
func (m *ObjectStorageMock) Delete(ctx context.Context, key string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, key)
	}
	return nil
}
