// Package services holds the sync coordinator, the only component that
// moves records between the local store and the remote backend, and the only
// persistence surface the UI layer talks to.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"controljm/internal/core"
	"controljm/internal/log"
	"controljm/internal/remote"
	"controljm/internal/storage"
)

// ErrNotConfigured marks remote operations attempted while no plausible
// remote credential is present. Callers treat it as a normal degraded-mode
// outcome, not a failure.
var ErrNotConfigured = errors.New("remote backend not configured")

// Status is the coordinator's last known sync outcome, surfaced to the UI
// as the tri-state cloud indicator.
type Status string

const (
	StatusConnected Status = "connected"
	StatusOffline   Status = "offline"
	StatusError     Status = "error"
)

// WriteResult reports both halves of a write. The local half is
// authoritative: when LocalOK is true the record is durably stored and
// visible to subsequent local reads. The remote half is best-effort; callers
// that care (sync status UI) can inspect it, callers that don't ignore it.
type WriteResult struct {
	LocalOK   bool
	RemoteOK  bool
	RemoteErr error
}

// Coordinator orchestrates push (local to remote), pull (remote to local,
// overwrite by id) and the remote change subscription. Local writes always
// complete before their best-effort remote propagation; conflicting edits
// from other devices resolve as last-writer-wins at the remote store.
type Coordinator struct {
	store  storage.Store
	remote *remote.Provider

	// pullSeq orders pulls: a pull result is applied only while it is the
	// latest issued, so a slow fetch cannot overwrite a newer one.
	pullSeq atomic.Uint64
	applyMu sync.Mutex

	statusMu sync.Mutex
	status   Status

	onApply func()
}

func NewCoordinator(store storage.Store, provider *remote.Provider) *Coordinator {
	return &Coordinator{
		store:  store,
		remote: provider,
		status: StatusOffline,
	}
}

// SetOnApply registers a hook invoked after a pull rewrites local records,
// so read-side caches can be flushed. Must be set before the coordinator is
// shared across goroutines.
func (c *Coordinator) SetOnApply(fn func()) {
	c.onApply = fn
}

// Status returns the last known sync outcome.
func (c *Coordinator) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

func (c *Coordinator) setStatus(s Status) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// GetAll returns every local record in the collection. Callers filter by
// scope; the store does not.
func (c *Coordinator) GetAll(ctx context.Context, collection core.Collection) ([]core.Record, error) {
	return c.store.GetAll(ctx, collection)
}

// Save writes the record locally, then propagates it to the remote table
// best-effort. The local write is durable and ordered before return; a
// remote failure degrades the result, never the local state.
func (c *Coordinator) Save(ctx context.Context, collection core.Collection, record core.Record) (WriteResult, error) {
	if record == nil {
		return WriteResult{}, storage.ErrMissingID
	}
	if record.ID() == "" {
		record["id"] = uuid.NewString()
	}

	if err := c.store.Put(ctx, collection, record); err != nil {
		return WriteResult{}, fmt.Errorf("local put: %w", err)
	}
	result := WriteResult{LocalOK: true}

	client := c.remote.Client(ctx)
	if client == nil {
		return result, nil
	}

	if err := client.SaveItem(ctx, collection, record); err != nil {
		slog.WarnContext(ctx, "Remote save failed, record kept local",
			log.FieldComponent, log.ComponentSync,
			log.FieldCollection, collection.String(),
			log.FieldRecordID, record.ID(),
			log.FieldError, err.Error())
		result.RemoteErr = err
		return result, nil
	}

	result.RemoteOK = true
	return result, nil
}

// Delete removes the record locally, then remotely best-effort. Deleting an
// absent id is a no-op on both sides.
func (c *Coordinator) Delete(ctx context.Context, collection core.Collection, id string) (WriteResult, error) {
	if err := c.store.Delete(ctx, collection, id); err != nil {
		return WriteResult{}, fmt.Errorf("local delete: %w", err)
	}
	result := WriteResult{LocalOK: true}

	client := c.remote.Client(ctx)
	if client == nil {
		return result, nil
	}

	if err := client.DeleteItem(ctx, collection, id); err != nil {
		slog.WarnContext(ctx, "Remote delete failed, local delete kept",
			log.FieldComponent, log.ComponentSync,
			log.FieldCollection, collection.String(),
			log.FieldRecordID, id,
			log.FieldError, err.Error())
		result.RemoteErr = err
		return result, nil
	}

	result.RemoteOK = true
	return result, nil
}

// PullRemote fetches the remote state for userID and overwrites matching
// local records by id (remote wins on pull). A pull superseded by a newer
// one discards its result instead of applying a stale snapshot.
func (c *Coordinator) PullRemote(ctx context.Context, userID string) error {
	client := c.remote.Client(ctx)
	if client == nil {
		c.setStatus(StatusOffline)
		return ErrNotConfigured
	}

	seq := c.pullSeq.Add(1)

	snapshot, err := client.FetchAll(ctx, userID)
	if err != nil {
		c.setStatus(StatusError)
		slog.WarnContext(ctx, "Remote pull failed", "error", err)
		return fmt.Errorf("pull remote: %w", err)
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if c.pullSeq.Load() != seq {
		slog.DebugContext(ctx, "Discarding stale pull result", "seq", seq)
		return nil
	}

	for _, collection := range core.Collections() {
		for _, rec := range snapshot[collection] {
			if rec.ID() == "" {
				continue
			}
			if err := c.store.Put(ctx, collection, rec); err != nil {
				c.setStatus(StatusError)
				return fmt.Errorf("apply pulled %s record: %w", collection, err)
			}
		}
	}

	c.setStatus(StatusConnected)
	if c.onApply != nil {
		c.onApply()
	}
	return nil
}

// ManualSync is the user-triggered full bidirectional sync: every local
// record owned by userID is pushed per collection in bulk, then a full pull
// overwrites local state with the remote's. It is also the only retry path
// out of degraded mode.
func (c *Coordinator) ManualSync(ctx context.Context, userID string) error {
	client := c.remote.Client(ctx)
	if client == nil {
		c.setStatus(StatusOffline)
		return ErrNotConfigured
	}

	for _, collection := range core.Collections() {
		records, err := c.store.GetAll(ctx, collection)
		if err != nil {
			return fmt.Errorf("read local %s: %w", collection, err)
		}
		owned := core.FilterByUser(records, userID)
		if len(owned) == 0 {
			continue
		}
		if err := client.SaveItems(ctx, collection, owned); err != nil {
			// Push failures degrade to pull-only; the pull below decides
			// the reported outcome.
			slog.WarnContext(ctx, "Bulk push failed",
				log.FieldComponent, log.ComponentSync,
				log.FieldCollection, collection.String(),
				log.FieldCount, len(owned),
				log.FieldError, err.Error())
		}
	}

	return c.PullRemote(ctx, userID)
}

// Subscribe opens the remote change stream for userID; every notification
// triggers a full pull. Returns a no-op unsubscribe when not configured.
func (c *Coordinator) Subscribe(ctx context.Context, userID string) (func(), error) {
	client := c.remote.Client(ctx)
	if client == nil {
		return func() {}, nil
	}

	unsubscribe, err := client.SubscribeChanges(ctx, userID, func() {
		// Notifications carry no payload; any signal means re-pull.
		if err := c.PullRemote(ctx, userID); err != nil && !errors.Is(err, ErrNotConfigured) {
			slog.WarnContext(ctx, "Pull after change notification failed", "error", err)
		}
	})
	if err != nil {
		c.setStatus(StatusError)
		return func() {}, fmt.Errorf("subscribe to changes: %w", err)
	}
	return unsubscribe, nil
}

// IsConfigured reports whether the remote backend has plausible credentials.
func (c *Coordinator) IsConfigured(ctx context.Context) bool {
	return c.remote.IsConfigured(ctx)
}
