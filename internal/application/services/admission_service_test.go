package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	impl "github.com/klong-dev/swd-stockintel-sub000/internal/application/services"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	tmocks "github.com/klong-dev/swd-stockintel-sub000/test/mocks"
)

func TestAdmit_InvalidCredential(t *testing.T) {
	resolver := &tmocks.CredentialResolverMock{ResolveFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return nil, admission.ErrInvalidCredential
	}}
	limiterCalled := false
	limiter := &tmocks.RateLimiterServiceMock{AllowFn: func(ctx context.Context, clientID int64, limit int) (bool, int64, time.Time, error) {
		limiterCalled = true
		return true, 1, time.Now(), nil
	}}
	svc := impl.NewAdmissionService(resolver, limiter, &tmocks.ClientRepositoryMock{}, logrus.New())

	_, err := svc.Admit(context.Background(), "sk_bogus")
	if !errors.Is(err, admission.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if limiterCalled {
		t.Fatalf("rate limiter must not run for an unresolved credential")
	}
}

func TestAdmit_InactiveClient(t *testing.T) {
	c := activeClient(1, "sk_abc")
	c.IsActive = false
	resolver := &tmocks.CredentialResolverMock{ResolveFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return c, nil
	}}
	svc := impl.NewAdmissionService(resolver, &tmocks.RateLimiterServiceMock{}, &tmocks.ClientRepositoryMock{}, logrus.New())

	_, err := svc.Admit(context.Background(), "sk_abc")
	if !errors.Is(err, admission.ErrClientInactive) {
		t.Fatalf("expected ErrClientInactive, got %v", err)
	}
}

func TestAdmit_RateLimited(t *testing.T) {
	resolver := &tmocks.CredentialResolverMock{ResolveFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return activeClient(1, secret), nil
	}}
	limiter := &tmocks.RateLimiterServiceMock{AllowFn: func(ctx context.Context, clientID int64, limit int) (bool, int64, time.Time, error) {
		return false, int64(limit) + 1, time.Now().Add(time.Hour), nil
	}}
	svc := impl.NewAdmissionService(resolver, limiter, &tmocks.ClientRepositoryMock{}, logrus.New())

	_, err := svc.Admit(context.Background(), "sk_abc")
	if !errors.Is(err, admission.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAdmit_LimiterFailureRejects(t *testing.T) {
	resolver := &tmocks.CredentialResolverMock{ResolveFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return activeClient(1, secret), nil
	}}
	limiter := &tmocks.RateLimiterServiceMock{AllowFn: func(ctx context.Context, clientID int64, limit int) (bool, int64, time.Time, error) {
		return false, 0, time.Time{}, errors.New("redis down")
	}}
	svc := impl.NewAdmissionService(resolver, limiter, &tmocks.ClientRepositoryMock{}, logrus.New())

	_, err := svc.Admit(context.Background(), "sk_abc")
	if err == nil {
		t.Fatalf("limiter failure must not admit the request")
	}
	if errors.Is(err, admission.ErrRateLimited) {
		t.Fatalf("infrastructure failure must be distinguishable from exhaustion: %v", err)
	}
}

func TestAdmit_UsesClientConfiguredLimit(t *testing.T) {
	c := activeClient(9, "sk_abc")
	c.RateLimitPerHour = 250
	resolver := &tmocks.CredentialResolverMock{ResolveFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return c, nil
	}}
	var gotLimit int
	limiter := &tmocks.RateLimiterServiceMock{AllowFn: func(ctx context.Context, clientID int64, limit int) (bool, int64, time.Time, error) {
		gotLimit = limit
		return true, 1, time.Now().Add(time.Hour), nil
	}}
	svc := impl.NewAdmissionService(resolver, limiter, &tmocks.ClientRepositoryMock{}, logrus.New())

	got, err := svc.Admit(context.Background(), "sk_abc")
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if got.ID != 9 {
		t.Fatalf("returned client %d", got.ID)
	}
	if gotLimit != 250 {
		t.Fatalf("limiter used limit %d, want the client's own 250", gotLimit)
	}
}

func TestAdmit_RecordsAccessOffCriticalPath(t *testing.T) {
	resolver := &tmocks.CredentialResolverMock{ResolveFn: func(ctx context.Context, secret string) (*client.Client, error) {
		return activeClient(4, secret), nil
	}}
	recorded := make(chan int64, 1)
	repo := &tmocks.ClientRepositoryMock{SetLastAccessFn: func(ctx context.Context, id int64, at time.Time) error {
		recorded <- id
		return nil
	}}
	svc := impl.NewAdmissionService(resolver, &tmocks.RateLimiterServiceMock{}, repo, logrus.New())

	if _, err := svc.Admit(context.Background(), "sk_abc"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	select {
	case id := <-recorded:
		if id != 4 {
			t.Fatalf("recorded access for client %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("last access never recorded")
	}
}
