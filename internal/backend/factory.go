package backend

import (
	"fmt"
	"log/slog"

	"controljm/internal/storage"
	"controljm/internal/storage/memory"
)

// Open constructs the local store for the given configuration. The caller
// owns the returned store and closes it on shutdown.
func Open(cfg Config, logger *slog.Logger) (storage.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		logger.Info("Initialized SQLite store", "db_path", cfg.SQLiteDBPath)
		return store, nil

	case MemoryBackend:
		logger.Info("Initialized memory store")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
