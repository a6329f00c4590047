// Package backend builds the ledger store selected by configuration,
// together with the token revocation and alert stores that share it.
package backend

import (
	"context"

	"spendguard/internal/auth"
	"spendguard/internal/ledger"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Backend bundles the stores of one storage engine.
type Backend struct {
	Type        BackendType
	Store       ledger.Store
	Revocations auth.RevocationStore
	Alerts      ledger.AlertRecorder
	// Ping reports whether the engine is reachable.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (b *Backend) Close() error {
	if b == nil || b.Cleanup == nil {
		return nil
	}
	return b.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Mongo specific
	MongoURI string
	MongoDB  string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MongoBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
