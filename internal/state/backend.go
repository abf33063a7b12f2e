// Package state persists the last-known-reconciled set of resources.
// The executor is the only writer during a run; every backend
// transparently encrypts content when WEFT_STATE_ENCRYPTION_KEY is
// set.
package state

import (
	"context"
	"fmt"

	"github.com/weft-io/weft/internal/ir"
)

// Backend defines the interface for state storage backends.
type Backend interface {
	// Read loads the state from the backend. A missing state yields an
	// empty state, not an error.
	Read(ctx context.Context) (*ir.State, error)

	// Write saves the state to the backend.
	Write(ctx context.Context, state *ir.State) error

	// Lock acquires an exclusive lock on the state.
	Lock() error

	// Unlock releases the lock on the state.
	Unlock() error
}

// BackendConfig holds configuration for a state backend.
type BackendConfig struct {
	Type   string            `json:"type"` // "local", "s3", "sqlite"
	Config map[string]string `json:"config"`
}

// NewBackend creates a state backend from configuration.
func NewBackend(cfg *BackendConfig) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		path := cfg.Config["path"]
		if path == "" {
			path = DefaultStatePath
		}
		return NewManager(path), nil
	case "s3":
		return newS3Backend(cfg.Config)
	case "sqlite":
		return newSQLiteBackend(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
