// Package cli provides common initialization shared by cmd/controljm and
// cmd/controljm-worker.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"controljm/internal/backend"
	"controljm/internal/config"
	"controljm/internal/log"
	"controljm/internal/storage"
)

// SetupLogger initializes structured logging with default settings and sets
// it as the process default.
func SetupLogger() *slog.Logger {
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)
	return logger.Logger
}

// LoadEnvFile loads the .env file for local development. Errors are ignored
// silently as the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it. Returns the
// config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the configured local store backend. Returns the store or
// exits the process on failure.
func OpenStore(logger *slog.Logger, cfg *config.Config) storage.Store {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	store, err := backend.Open(backendCfg, logger)
	if err != nil {
		logger.Error("Failed to open local store", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	return store
}
