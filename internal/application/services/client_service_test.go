package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	impl "github.com/klong-dev/swd-stockintel-sub000/internal/application/services"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	tmocks "github.com/klong-dev/swd-stockintel-sub000/test/mocks"
)

func TestCreateClient_DefaultsAndCredentials(t *testing.T) {
	store := tmocks.NewMemoryClientStore()
	svc := impl.NewClientService(store, &tmocks.CredentialResolverMock{}, logrus.New())

	c, creds, err := svc.CreateClient(context.Background(), &client.CreateClientRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !c.IsActive {
		t.Fatalf("new client must start active")
	}
	if c.MaxStorageBytes != 100<<20 || c.MaxAssetBytes != 10<<20 || c.RateLimitPerHour != 1000 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if len(c.AllowedFormats) == 0 {
		t.Fatalf("default formats not applied")
	}
	if !strings.HasPrefix(creds.APIKey, "ak_") || !strings.HasPrefix(creds.Secret, "sk_") {
		t.Fatalf("credential prefixes: %q / %q", creds.APIKey, creds.Secret)
	}
	if creds.APIKey == creds.Secret {
		t.Fatalf("api key and secret must differ")
	}
}

func TestCreateClient_RequiresName(t *testing.T) {
	svc := impl.NewClientService(tmocks.NewMemoryClientStore(), &tmocks.CredentialResolverMock{}, logrus.New())
	if _, _, err := svc.CreateClient(context.Background(), &client.CreateClientRequest{}); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestCreateClient_ExplicitLimitsKept(t *testing.T) {
	svc := impl.NewClientService(tmocks.NewMemoryClientStore(), &tmocks.CredentialResolverMock{}, logrus.New())
	c, _, err := svc.CreateClient(context.Background(), &client.CreateClientRequest{
		Name:             "custom",
		MaxStorageBytes:  1 << 30,
		MaxAssetBytes:    50 << 20,
		AllowedFormats:   []string{"webp"},
		RateLimitPerHour: 10,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.MaxStorageBytes != 1<<30 || c.MaxAssetBytes != 50<<20 || c.RateLimitPerHour != 10 {
		t.Fatalf("explicit limits overridden: %+v", c)
	}
	if len(c.AllowedFormats) != 1 || c.AllowedFormats[0] != "webp" {
		t.Fatalf("formats overridden: %v", c.AllowedFormats)
	}
}

func TestCreateClient_NormalizesFormats(t *testing.T) {
	// Provisioned format casing must not decide upload outcomes: the
	// upload path compares lowercase extensions against the stored set.
	svc := impl.NewClientService(tmocks.NewMemoryClientStore(), &tmocks.CredentialResolverMock{}, logrus.New())
	c, _, err := svc.CreateClient(context.Background(), &client.CreateClientRequest{
		Name:           "acme",
		AllowedFormats: []string{"JPG", ".Png", " pdf "},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, ext := range []string{"jpg", "png", "pdf", ".JPG"} {
		if !c.AllowsFormat(ext) {
			t.Errorf("extension %q rejected after provisioning with mixed-case formats %v", ext, c.AllowedFormats)
		}
	}
	if c.AllowsFormat("exe") {
		t.Errorf("exe allowed")
	}
}

func TestRotateCredentials_OldSecretStopsResolving(t *testing.T) {
	// End to end through the real resolver: resolve caches the old secret,
	// rotation must leave no path for it to verify again.
	store := tmocks.NewMemoryClientStore()
	cache := tmocks.NewMemoryCache()
	resolver := impl.NewCredentialService(store, cache, nil, logrus.New())
	svc := impl.NewClientService(store, resolver, logrus.New())

	c, creds, err := svc.CreateClient(context.Background(), &client.CreateClientRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), creds.Secret); err != nil {
		t.Fatalf("resolve before rotation: %v", err)
	}

	newCreds, err := svc.RotateCredentials(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newCreds.Secret == creds.Secret {
		t.Fatalf("rotation reissued the same secret")
	}

	if _, err := resolver.Resolve(context.Background(), creds.Secret); !errors.Is(err, admission.ErrInvalidCredential) {
		t.Fatalf("old secret still resolves after rotation: %v", err)
	}
	got, err := resolver.Resolve(context.Background(), newCreds.Secret)
	if err != nil {
		t.Fatalf("new secret rejected: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("new secret resolved to client %d", got.ID)
	}
}

func TestRotateCredentials_InvalidationFailureNotAcknowledged(t *testing.T) {
	store := tmocks.NewMemoryClientStore()
	c, _ := seedClientWithSecret(store)
	resolver := &tmocks.CredentialResolverMock{InvalidateFn: func(ctx context.Context, secret string) error {
		return errors.New("redis down")
	}}
	svc := impl.NewClientService(store, resolver, logrus.New())

	if _, err := svc.RotateCredentials(context.Background(), c.ID); err == nil {
		t.Fatalf("rotation must not be acknowledged while the old secret may still verify")
	}
}

func TestSetClientActive_InvalidatesCachedSnapshot(t *testing.T) {
	store := tmocks.NewMemoryClientStore()
	cache := tmocks.NewMemoryCache()
	resolver := impl.NewCredentialService(store, cache, nil, logrus.New())
	svc := impl.NewClientService(store, resolver, logrus.New())

	c, creds, err := svc.CreateClient(context.Background(), &client.CreateClientRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), creds.Secret); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := svc.SetClientActive(context.Background(), c.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), creds.Secret); !errors.Is(err, admission.ErrInvalidCredential) {
		t.Fatalf("deactivated client still resolves: %v", err)
	}
}

func seedClientWithSecret(store *tmocks.MemoryClientStore) (*client.Client, string) {
	c := activeClient(0, "sk_seeded")
	_ = store.Create(context.Background(), c)
	return c, c.Secret
}
