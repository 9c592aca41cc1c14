package asset

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when no asset matches the lookup.
var ErrNotFound = errors.New("asset not found")

// Asset is a stored upload. ReservedBytes is the rounded size that was
// charged against the owning client's quota; deletion releases exactly
// this recorded amount, never a re-measurement.
type Asset struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ClientID      int64     `json:"client_id" db:"client_id"`
	FileName      string    `json:"file_name" db:"file_name"`
	StorageKey    string    `json:"-" db:"storage_key"`
	URL           string    `json:"url" db:"url"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	ReservedBytes int64     `json:"reserved_bytes" db:"reserved_bytes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Extension returns the lowercase file extension of name without the dot,
// or "" when name has none.
func Extension(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
