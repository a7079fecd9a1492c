package storage

import (
	"fmt"

	"fastllm-hq/turbine/pkg/config"
)

// Open creates the backend selected by cfg.Backend.
func Open(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "sqlite":
		return NewSQLiteBackend(SQLiteBackendConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
