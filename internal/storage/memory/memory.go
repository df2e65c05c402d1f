// Package memory provides an in-memory Store used by tests and by the
// memory data backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"controljm/internal/core"
	"controljm/internal/storage"
)

type Store struct {
	mu          sync.Mutex
	collections map[core.Collection]map[string]core.Record
	settings    map[string]string
}

func New() *Store {
	collections := make(map[core.Collection]map[string]core.Record, len(core.Collections()))
	for _, c := range core.Collections() {
		collections[c] = make(map[string]core.Record)
	}
	return &Store{
		collections: collections,
		settings:    make(map[string]string),
	}
}

func (s *Store) GetAll(_ context.Context, collection core.Collection) ([]core.Record, error) {
	if !collection.IsValid() {
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownCollection, collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]core.Record, 0, len(s.collections[collection]))
	for _, rec := range s.collections[collection] {
		records = append(records, rec.Clone())
	}
	return records, nil
}

func (s *Store) Put(_ context.Context, collection core.Collection, record core.Record) error {
	if !collection.IsValid() {
		return fmt.Errorf("%w: %s", storage.ErrUnknownCollection, collection)
	}
	id := record.ID()
	if id == "" {
		return storage.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection][id] = record.Clone()
	return nil
}

func (s *Store) Delete(_ context.Context, collection core.Collection, id string) error {
	if !collection.IsValid() {
		return fmt.Errorf("%w: %s", storage.ErrUnknownCollection, collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *Store) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[key], nil
}

func (s *Store) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) Close() error { return nil }
