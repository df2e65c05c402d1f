// Package worker runs background reconciliation against the remote backend:
// a pull on startup, a subscription to remote change notifications, and a
// periodic full reconcile as the safety net for missed notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"controljm/internal/log"
	"controljm/internal/services"
)

// SyncWorkerConfig holds configuration for the background sync worker.
type SyncWorkerConfig struct {
	// UserID scopes every pull and push to one record owner.
	UserID string

	// ReconcileInterval is how often the periodic full sync runs (default: 5m).
	ReconcileInterval time.Duration

	// Realtime enables the remote change subscription. When disabled the
	// periodic reconcile is the only pull trigger.
	Realtime bool
}

// DefaultSyncWorkerConfig returns sensible defaults.
func DefaultSyncWorkerConfig(userID string) SyncWorkerConfig {
	return SyncWorkerConfig{
		UserID:            userID,
		ReconcileInterval: 5 * time.Minute,
		Realtime:          true,
	}
}

// SyncWorker drives the coordinator on a schedule. All actual data movement
// lives in the coordinator; the worker only decides when.
type SyncWorker struct {
	coordinator *services.Coordinator
	config      SyncWorkerConfig

	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	unsubscribe func()
}

func NewSyncWorker(coordinator *services.Coordinator, config SyncWorkerConfig) *SyncWorker {
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = 5 * time.Minute
	}
	return &SyncWorker{
		coordinator: coordinator,
		config:      config,
	}
}

// Start performs the startup pull, opens the change subscription and begins
// the reconcile loop. Returns an error if already running. An unconfigured
// remote is not an error: the worker idles until settings appear and the
// next reconcile tick picks them up.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	if err := w.coordinator.PullRemote(ctx, w.config.UserID); err != nil {
		if errors.Is(err, services.ErrNotConfigured) {
			slog.InfoContext(ctx, "Remote not configured, startup pull skipped")
		} else {
			slog.WarnContext(ctx, "Startup pull failed", "error", err)
		}
	}

	if w.config.Realtime {
		unsubscribe, err := w.coordinator.Subscribe(ctx, w.config.UserID)
		if err != nil {
			slog.WarnContext(ctx, "Change subscription failed, relying on periodic reconcile", "error", err)
		} else {
			w.mu.Lock()
			w.unsubscribe = unsubscribe
			w.mu.Unlock()
		}
	}

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Sync worker started",
		log.FieldComponent, log.ComponentWorker,
		log.FieldUserID, w.config.UserID,
		"reconcile_interval", w.config.ReconcileInterval,
		"realtime", w.config.Realtime)

	return nil
}

// Stop closes the subscription and waits for the reconcile loop to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the worker loop is active.
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// reconcile runs one full push-then-pull cycle. Failures are logged and
// retried on the next tick.
func (w *SyncWorker) reconcile(ctx context.Context) {
	err := w.coordinator.ManualSync(ctx, w.config.UserID)
	switch {
	case errors.Is(err, services.ErrNotConfigured):
		slog.DebugContext(ctx, "Reconcile skipped, remote not configured")
	case err != nil:
		slog.WarnContext(ctx, "Periodic reconcile failed",
			log.FieldComponent, log.ComponentWorker,
			log.FieldError, err.Error())
	default:
		slog.DebugContext(ctx, "Periodic reconcile completed")
	}
}
