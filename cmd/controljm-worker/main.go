package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"controljm/internal/cli"
	"controljm/internal/core"
	"controljm/internal/remote"
	"controljm/internal/services"
	"controljm/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting controljm-worker")

	cfg := cli.LoadAndValidateConfig(logger)

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

	workerCfg := worker.DefaultSyncWorkerConfig(core.DefaultUser().ID)
	workerCfg.ReconcileInterval = cfg.SyncInterval
	workerCfg.Realtime = cfg.RealtimeEnabled

	syncWorker := worker.NewSyncWorker(coordinator, workerCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := syncWorker.Stop(shutdownCtx); err != nil {
		logger.Error("Sync worker stop error", "error", err)
	}

	logger.Info("Worker stopped gracefully")
}
