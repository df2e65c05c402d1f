package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"controljm/internal/cli"
	"controljm/internal/core"
	apphttp "controljm/internal/http"
	"controljm/internal/remote"
	"controljm/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting controljm server")

	cfg := cli.LoadAndValidateConfig(logger)

	// Model and remote schema must agree before anything syncs.
	if err := remote.VerifySchemas(); err != nil {
		logger.Error("Remote schema verification failed", "error", err)
		os.Exit(1)
	}

	store := cli.OpenStore(logger, cfg)
	defer store.Close()

	provider := remote.NewProvider(store, remote.Settings{
		URL:     cfg.RemoteURL,
		AnonKey: cfg.RemoteAnonKey,
	})
	coordinator := services.NewCoordinator(store, provider)

	srv := apphttp.NewServer(":"+cfg.Port, coordinator, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The server process owns the user-facing sync lifecycle: one pull at
	// startup plus the change subscription. The periodic reconcile belongs
	// to controljm-worker.
	userID := core.DefaultUser().ID
	if err := coordinator.PullRemote(ctx, userID); err != nil {
		if errors.Is(err, services.ErrNotConfigured) {
			logger.Info("Remote not configured, starting in local-only mode")
		} else {
			logger.Warn("Startup pull failed, serving local state", "error", err)
		}
	}

	var unsubscribe func()
	if cfg.RealtimeEnabled {
		var err error
		unsubscribe, err = coordinator.Subscribe(ctx, userID)
		if err != nil {
			logger.Warn("Change subscription failed", "error", err)
			unsubscribe = func() {}
		}
	} else {
		unsubscribe = func() {}
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		unsubscribe()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Server listening",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"remote_configured", provider.IsConfigured(ctx))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
