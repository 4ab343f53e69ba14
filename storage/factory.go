package storage

import (
	"fmt"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
)

// NewStore creates the backend named in the storage config. layers is the
// genome topology loads are validated against.
func NewStore(cfg config.StorageConfig, layers []int, clk clock.Clock) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir, layers, clk), nil
	case "memory":
		return NewMemoryStore(layers, clk), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, layers, clk), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// CloseIfSupported closes stores that hold resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
