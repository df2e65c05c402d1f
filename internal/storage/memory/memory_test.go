package memory

import (
	"context"
	"errors"
	"testing"

	"controljm/internal/core"
	"controljm/internal/storage"
)

func TestStore_PutGetDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := core.Record{"id": "exp-1", "userId": "u-1", "name": "Renta"}
	if err := store.Put(ctx, core.Expenses, rec); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	records, err := store.GetAll(ctx, core.Expenses)
	if err != nil {
		t.Fatalf("GetAll() error: %v", err)
	}
	if len(records) != 1 || records[0].ID() != "exp-1" {
		t.Fatalf("GetAll() = %v", records)
	}

	if err := store.Delete(ctx, core.Expenses, "exp-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	records, _ = store.GetAll(ctx, core.Expenses)
	if len(records) != 0 {
		t.Fatalf("record survived delete: %v", records)
	}
}

func TestStore_ClonesOnBoundaries(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := core.Record{"id": "g-1", "userId": "u-1", "name": "original"}
	if err := store.Put(ctx, core.Goals, rec); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	// Mutating the caller's map after Put must not reach the store.
	rec["name"] = "mutated"

	records, _ := store.GetAll(ctx, core.Goals)
	if records[0]["name"] != "original" {
		t.Fatal("store shares memory with the caller's record")
	}

	// Mutating a read result must not reach the store either.
	records[0]["name"] = "mutated again"
	again, _ := store.GetAll(ctx, core.Goals)
	if again[0]["name"] != "original" {
		t.Fatal("store shares memory with read results")
	}
}

func TestStore_RejectsBadInput(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Put(ctx, core.Collection("nope"), core.Record{"id": "x"}); !errors.Is(err, storage.ErrUnknownCollection) {
		t.Fatalf("Put(unknown collection) = %v", err)
	}
	if err := store.Put(ctx, core.Expenses, core.Record{}); !errors.Is(err, storage.ErrMissingID) {
		t.Fatalf("Put(no id) = %v", err)
	}
}

func TestStore_Settings(t *testing.T) {
	store := New()
	ctx := context.Background()

	value, err := store.GetSetting(ctx, "missing")
	if err != nil || value != "" {
		t.Fatalf("GetSetting(missing) = (%q, %v), want empty", value, err)
	}

	if err := store.PutSetting(ctx, "k", "v1"); err != nil {
		t.Fatalf("PutSetting() error: %v", err)
	}
	if err := store.PutSetting(ctx, "k", "v2"); err != nil {
		t.Fatalf("PutSetting() overwrite error: %v", err)
	}
	value, _ = store.GetSetting(ctx, "k")
	if value != "v2" {
		t.Fatalf("GetSetting() = %q, want v2", value)
	}
}
