package client

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories when no client matches the lookup.
var ErrNotFound = errors.New("client not found")

// Client represents a registered tenant of the ingestion API. Callers
// authenticate with Secret; APIKey is the public identifier of the pair.
type Client struct {
	ID               int64      `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	APIKey           string     `json:"api_key" db:"api_key"`
	Secret           string     `json:"-" db:"secret"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	MaxStorageBytes  int64      `json:"max_storage_bytes" db:"max_storage_bytes"`
	UsedStorageBytes int64      `json:"used_storage_bytes" db:"used_storage_bytes"`
	MaxAssetBytes    int64      `json:"max_asset_bytes" db:"max_asset_bytes"`
	AllowedFormats   []string   `json:"allowed_formats" db:"allowed_formats"`
	RateLimitPerHour int        `json:"rate_limit_per_hour" db:"rate_limit_per_hour"`
	LastAccessAt     *time.Time `json:"last_access_at,omitempty" db:"last_access_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Client domain methods

// CanAccess returns true if the client may use the ingestion API at all.
func (c *Client) CanAccess() bool {
	return c.IsActive
}

// AllowsFormat reports whether the given file extension (without dot,
// case-insensitive) is in the client's allowed set.
func (c *Client) AllowsFormat(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return slices.Contains(c.AllowedFormats, ext)
}

// RemainingStorage returns the unreserved portion of the client's quota.
func (c *Client) RemainingStorage() int64 {
	if c.UsedStorageBytes >= c.MaxStorageBytes {
		return 0
	}
	return c.MaxStorageBytes - c.UsedStorageBytes
}

// DefaultStorageUnit is the granularity of storage accounting: byte deltas
// are rounded up to whole units on reserve and release alike.
const DefaultStorageUnit int64 = 1 << 20

// RoundToStorageUnit rounds n up to a whole multiple of unit. The same
// function must be used on reserve and on release so that repeated
// upload/delete cycles of one asset never leak or over-free quota.
func RoundToStorageUnit(n, unit int64) int64 {
	if n <= 0 {
		return 0
	}
	if unit <= 1 {
		return n
	}
	return ((n + unit - 1) / unit) * unit
}

// Credentials is the secret/apiKey pair returned once on creation or rotation.
type Credentials struct {
	APIKey string `json:"api_key"`
	Secret string `json:"secret"`
}

// CreateClientRequest represents the request to provision a new client.
// Zero-valued limits fall back to service defaults.
type CreateClientRequest struct {
	Name             string   `json:"name" validate:"required"`
	MaxStorageBytes  int64    `json:"max_storage_bytes,omitempty"`
	MaxAssetBytes    int64    `json:"max_asset_bytes,omitempty"`
	AllowedFormats   []string `json:"allowed_formats,omitempty"`
	RateLimitPerHour int      `json:"rate_limit_per_hour,omitempty"`
}
