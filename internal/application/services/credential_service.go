package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/admission"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
)

// CredentialService is the cache-aside resolver in front of the durable
// client store, keyed by secret. Cache entries are bounded-TTL snapshots
// and never the source of truth for storage counters; they exist to spare
// a DB round trip on secret verification for every request.
type CredentialService struct {
	repo      ports.ClientRepository
	cache     ports.Cache
	ttl       time.Duration
	keyPrefix string
	sf        singleflight.Group
	logger    *logrus.Logger
}

// CredentialCacheConfig groups configuration for the resolver.
type CredentialCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

func NewCredentialService(repo ports.ClientRepository, cache ports.Cache, cfg *CredentialCacheConfig, logger *logrus.Logger) *CredentialService {
	// Apply defaults
	ttl := 5 * time.Minute
	kp := "client:secret"
	if cfg != nil {
		if cfg.TTL > 0 {
			ttl = cfg.TTL
		}
		if cfg.KeyPrefix != "" {
			kp = cfg.KeyPrefix
		}
	}
	return &CredentialService{repo: repo, cache: cache, ttl: ttl, keyPrefix: kp, logger: logger}
}

func (s *CredentialService) cacheKey(secret string) string {
	return s.keyPrefix + ":" + secret
}

// Resolve returns the active client owning secret, serving from cache when
// possible. A new secret is never cached preemptively; it caches lazily on
// first use. Misses for the same secret are coalesced so a stampede after
// an invalidation becomes one DB read.
func (s *CredentialService) Resolve(ctx context.Context, secret string) (*client.Client, error) {
	if c, ok := s.cachedClient(ctx, secret); ok {
		if !c.CanAccess() {
			return nil, admission.ErrClientInactive
		}
		return c, nil
	}

	res, err, _ := s.sf.Do(secret, func() (any, error) {
		if c, ok := s.cachedClient(ctx, secret); ok {
			return c, nil
		}
		c, err := s.repo.GetBySecret(ctx, secret)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return nil, admission.ErrInvalidCredential
			}
			return nil, fmt.Errorf("failed to resolve credential: %w", err)
		}
		s.cacheClient(ctx, secret, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := res.(*client.Client)
	if !ok {
		return nil, fmt.Errorf("unexpected type from singleflight result")
	}
	if !c.CanAccess() {
		return nil, admission.ErrClientInactive
	}
	return c, nil
}

// Invalidate removes the cache entry for secret unconditionally. Callers
// performing credential-affecting writes must not report success until this
// returns without error; a stale affirmative read of a revoked secret is
// the failure being defended against.
func (s *CredentialService) Invalidate(ctx context.Context, secret string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, s.cacheKey(secret)); err != nil {
		return fmt.Errorf("failed to invalidate credential cache: %w", err)
	}
	return nil
}

func (s *CredentialService) cachedClient(ctx context.Context, secret string) (*client.Client, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, s.cacheKey(secret))
	if err != nil || !ok {
		if err != nil && s.logger != nil {
			s.logger.WithError(err).Debug("credential cache read failed; falling back to store")
		}
		return nil, false
	}
	var c client.Client
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, false
	}
	return &c, true
}

func (s *CredentialService) cacheClient(ctx context.Context, secret string, c *client.Client) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(secret), b, s.ttl); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("client_id", c.ID).Debug("credential cache write failed")
	}
}
