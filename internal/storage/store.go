package storage

import (
	"context"
	"errors"

	"controljm/internal/core"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrMissingID         = errors.New("record has no id")
)

// Store is the on-device source of truth: five named collections, each a
// durable map from record id to the full record. It knows nothing about
// remote sync; copying between stores is the sync coordinator's job alone.
type Store interface {
	// GetAll returns every record in the collection, in unspecified order.
	GetAll(ctx context.Context, collection core.Collection) ([]core.Record, error)

	// Put inserts or fully replaces the record at its id. Idempotent.
	Put(ctx context.Context, collection core.Collection, record core.Record) error

	// Delete removes the record by id. Deleting an absent id is a no-op.
	Delete(ctx context.Context, collection core.Collection, id string) error

	// GetSetting returns the stored value for key, or "" when absent.
	GetSetting(ctx context.Context, key string) (string, error)

	// PutSetting stores or replaces a settings value.
	PutSetting(ctx context.Context, key, value string) error

	Close() error
}
