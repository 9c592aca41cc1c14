package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/domain/client"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
)

// Provisioning defaults applied when a create request leaves limits unset.
const (
	defaultMaxStorageBytes  = 100 << 20
	defaultMaxAssetBytes    = 10 << 20
	defaultRateLimitPerHour = 1000
)

var defaultAllowedFormats = []string{"jpg", "jpeg", "png", "gif", "pdf"}

// ClientService handles client provisioning and credential lifecycle.
// Credential-affecting writes invalidate the cached entry for the old
// secret and only report success once the invalidation went through.
type ClientService struct {
	repo        ports.ClientRepository
	credentials ports.CredentialResolver
	logger      *logrus.Logger
}

func NewClientService(repo ports.ClientRepository, credentials ports.CredentialResolver, logger *logrus.Logger) *ClientService {
	return &ClientService{repo: repo, credentials: credentials, logger: logger}
}

// CreateClient provisions a new client and returns the generated credential
// pair. The secret is returned exactly once; it is not readable afterwards.
func (s *ClientService) CreateClient(ctx context.Context, req *client.CreateClientRequest) (*client.Client, *client.Credentials, error) {
	if req.Name == "" {
		return nil, nil, fmt.Errorf("client name is required")
	}

	creds, err := generateCredentials()
	if err != nil {
		return nil, nil, err
	}

	c := &client.Client{
		Name:             req.Name,
		APIKey:           creds.APIKey,
		Secret:           creds.Secret,
		IsActive:         true,
		MaxStorageBytes:  req.MaxStorageBytes,
		MaxAssetBytes:    req.MaxAssetBytes,
		AllowedFormats:   normalizeFormats(req.AllowedFormats),
		RateLimitPerHour: req.RateLimitPerHour,
	}
	if c.MaxStorageBytes <= 0 {
		c.MaxStorageBytes = defaultMaxStorageBytes
	}
	if c.MaxAssetBytes <= 0 {
		c.MaxAssetBytes = defaultMaxAssetBytes
	}
	if len(c.AllowedFormats) == 0 {
		c.AllowedFormats = defaultAllowedFormats
	}
	if c.RateLimitPerHour <= 0 {
		c.RateLimitPerHour = defaultRateLimitPerHour
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"client_id": c.ID, "name": c.Name}).Info("client provisioned")
	}
	return c, creds, nil
}

func (s *ClientService) GetClient(ctx context.Context, id int64) (*client.Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ClientService) ListClients(ctx context.Context, limit, offset int) ([]*client.Client, error) {
	return s.repo.List(ctx, limit, offset)
}

// RotateCredentials issues a fresh secret/apiKey pair. The old secret's
// cache entry is invalidated before success is reported; the new secret is
// never cached preemptively and caches lazily on first use.
func (s *ClientService) RotateCredentials(ctx context.Context, id int64) (*client.Credentials, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSecret := c.Secret

	creds, err := generateCredentials()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetCredentials(ctx, id, creds.APIKey, creds.Secret); err != nil {
		return nil, err
	}

	if err := s.credentials.Invalidate(ctx, oldSecret); err != nil {
		// The durable store already holds the new pair but the old secret
		// may still verify until its cache entry expires. The rotation is
		// not acknowledged until invalidation succeeds.
		return nil, fmt.Errorf("credentials rotated but old secret not invalidated: %w", err)
	}

	if s.logger != nil {
		s.logger.WithField("client_id", id).Info("client credentials rotated")
	}
	return creds, nil
}

// SetClientActive flips the active flag, invalidating the cached snapshot
// so the change takes effect without waiting out the TTL.
func (s *ClientService) SetClientActive(ctx context.Context, id int64, active bool) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if err := s.credentials.Invalidate(ctx, c.Secret); err != nil {
		return fmt.Errorf("active flag updated but cached credential not invalidated: %w", err)
	}
	return nil
}

// normalizeFormats lowercases and strips leading dots so the stored set
// matches the lowercase extensions the upload path compares against.
func normalizeFormats(formats []string) []string {
	if len(formats) == 0 {
		return nil
	}
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func generateCredentials() (*client.Credentials, error) {
	apiKey, err := randomToken("ak")
	if err != nil {
		return nil, err
	}
	secret, err := randomToken("sk")
	if err != nil {
		return nil, err
	}
	return &client.Credentials{APIKey: apiKey, Secret: secret}, nil
}

func randomToken(prefix string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}
