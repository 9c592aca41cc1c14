package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	impl "github.com/klong-dev/swd-stockintel-sub000/internal/application/services"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	tmocks "github.com/klong-dev/swd-stockintel-sub000/test/mocks"
)

func activeClient(id int64, secret string) *client.Client {
	return &client.Client{
		ID:               id,
		Name:             "acme",
		APIKey:           "ak_x",
		Secret:           secret,
		IsActive:         true,
		MaxStorageBytes:  100 << 20,
		MaxAssetBytes:    10 << 20,
		AllowedFormats:   []string{"jpg", "png", "pdf"},
		RateLimitPerHour: 100,
	}
}

func TestResolve_MissThenHit(t *testing.T) {
	calls := 0
	repo := &tmocks.ClientRepositoryMock{GetBySecretFn: func(ctx context.Context, secret string) (*client.Client, error) {
		calls++
		return activeClient(1, secret), nil
	}}
	cache := tmocks.NewMemoryCache()
	svc := impl.NewCredentialService(repo, cache, nil, logrus.New())

	for i := 0; i < 3; i++ {
		c, err := svc.Resolve(context.Background(), "sk_abc")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if c.ID != 1 {
			t.Fatalf("resolve %d: got client %d", i, c.ID)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 store read across 3 resolves, got %d", calls)
	}
}

func TestResolve_UnknownSecret(t *testing.T) {
	repo := &tmocks.ClientRepositoryMock{}
	svc := impl.NewCredentialService(repo, tmocks.NewMemoryCache(), nil, logrus.New())

	_, err := svc.Resolve(context.Background(), "sk_nope")
	if !errors.Is(err, admission.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestResolve_StoreFailure(t *testing.T) {
	repo := &tmocks.ClientRepositoryMock{GetBySecretFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return nil, errors.New("db down")
	}}
	svc := impl.NewCredentialService(repo, tmocks.NewMemoryCache(), nil, logrus.New())

	_, err := svc.Resolve(context.Background(), "sk_abc")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, admission.ErrInvalidCredential) {
		t.Fatalf("store failure must not look like a bad credential: %v", err)
	}
}

func TestResolve_CachedInactiveClient(t *testing.T) {
	// A snapshot cached while the client was active can outlive a
	// deactivation; the active check must run on cache hits too.
	c := activeClient(7, "sk_abc")
	repo := &tmocks.ClientRepositoryMock{GetBySecretFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return c, nil
	}}
	cache := tmocks.NewMemoryCache()
	svc := impl.NewCredentialService(repo, cache, nil, logrus.New())

	if _, err := svc.Resolve(context.Background(), "sk_abc"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	c.IsActive = false
	// The cached snapshot is still the active one until invalidated, so a
	// second resolve would serve it. The store-side GetBySecret only
	// returns active clients, so after invalidation the secret stops
	// resolving.
	repo.GetBySecretFn = func(ctx context.Context, secret string) (*client.Client, error) {
		return nil, client.ErrNotFound
	}
	if err := svc.Invalidate(context.Background(), "sk_abc"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, err := svc.Resolve(context.Background(), "sk_abc")
	if !errors.Is(err, admission.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential after invalidation, got %v", err)
	}
}

func TestResolve_CacheErrorFallsBackToStore(t *testing.T) {
	repo := &tmocks.ClientRepositoryMock{GetBySecretFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return activeClient(3, secret), nil
	}}
	failing := &tmocks.CacheMock{GetFn: func(ctx context.Context, key string) ([]byte, bool, error) {
		return nil, false, errors.New("redis down")
	}}
	svc := impl.NewCredentialService(repo, failing, nil, logrus.New())

	c, err := svc.Resolve(context.Background(), "sk_abc")
	if err != nil {
		t.Fatalf("resolve with broken cache: %v", err)
	}
	if c.ID != 3 {
		t.Fatalf("got client %d", c.ID)
	}
}

func TestInvalidate_PropagatesCacheError(t *testing.T) {
	cache := &tmocks.CacheMock{DeleteFn: func(ctx context.Context, key string) error {
		return errors.New("redis down")
	}}
	svc := impl.NewCredentialService(&tmocks.ClientRepositoryMock{}, cache, nil, logrus.New())

	if err := svc.Invalidate(context.Background(), "sk_abc"); err == nil {
		t.Fatalf("expected invalidation failure to surface")
	}
}
