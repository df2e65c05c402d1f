package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"controljm/internal/core"
)

const testAnonKey = "test-anon-key-that-is-long-enough-to-look-plausible-000"

// fakeRemote is a minimal stand-in for the remote REST surface: rows per
// table, upsert by id, delete by id filter.
type fakeRemote struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]any
	failing  map[string]bool
	requests []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tables:  make(map[string]map[string]map[string]any),
		failing: make(map[string]bool),
	}
}

func (f *fakeRemote) seed(table string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tables[table] == nil {
		f.tables[table] = make(map[string]map[string]any)
	}
	for _, row := range rows {
		f.tables[table][row["id"].(string)] = row
	}
}

func (f *fakeRemote) rows(table string) map[string]map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table]
}

func (f *fakeRemote) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != testAnonKey {
			t.Errorf("missing apikey header on %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer "+testAnonKey {
			t.Errorf("missing bearer credential on %s %s", r.Method, r.URL.Path)
		}

		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")

		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+table)
		failing := f.failing[table]
		f.mu.Unlock()

		if failing {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}

		switch r.Method {
		case http.MethodGet:
			userFilter := strings.TrimPrefix(r.URL.Query().Get("userid"), "eq.")
			out := make([]map[string]any, 0)
			for _, row := range f.rows(table) {
				if userFilter != "" && row["userid"] != userFilter {
					continue
				}
				out = append(out, row)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(out)

		case http.MethodPost:
			if r.URL.Query().Get("on_conflict") != "id" {
				t.Errorf("upsert without on_conflict=id on %s", table)
			}
			body, _ := io.ReadAll(r.Body)
			var rows []map[string]any
			if err := json.Unmarshal(body, &rows); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			if f.tables[table] == nil {
				f.tables[table] = make(map[string]map[string]any)
			}
			for _, row := range rows {
				id, _ := row["id"].(string)
				if id == "" {
					f.mu.Unlock()
					http.Error(w, "row without id", http.StatusBadRequest)
					return
				}
				f.tables[table][id] = row
			}
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)

		case http.MethodDelete:
			id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
			f.mu.Lock()
			delete(f.tables[table], id)
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func newTestClient(t *testing.T, fake *fakeRemote) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Settings{URL: srv.URL, AnonKey: testAnonKey})
}

func TestClient_FetchAll(t *testing.T) {
	fake := newFakeRemote()
	fake.seed("expenses",
		map[string]any{"id": "exp-1", "userid": "u-1", "gastonombre": "Renta", "months": "[0,6]"},
		map[string]any{"id": "exp-2", "userid": "u-other", "gastonombre": "Ajena"},
	)
	fake.seed("goals",
		map[string]any{"id": "goal-1", "userid": "u-1", "name": "Vacaciones", "transactions": "[]"},
	)

	client := newTestClient(t, fake)
	snapshot, err := client.FetchAll(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}

	expenses := snapshot[core.Expenses]
	if len(expenses) != 1 {
		t.Fatalf("expected 1 expense for u-1, got %d", len(expenses))
	}
	if expenses[0]["name"] != "Renta" {
		t.Fatalf("gastonombre not mapped back to name: %v", expenses[0])
	}

	// Empty tables come back as empty slices, so the pull can still apply.
	if snapshot[core.Incomes] == nil {
		t.Fatal("missing incomes slice in snapshot")
	}
}

func TestClient_FetchAllPartialDegradation(t *testing.T) {
	fake := newFakeRemote()
	fake.seed("incomes",
		map[string]any{"id": "inc-1", "userid": "u-1", "name": "Salario"},
	)
	fake.failing["expenses"] = true

	client := newTestClient(t, fake)
	snapshot, err := client.FetchAll(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("one failing table must not fail the fetch: %v", err)
	}
	if len(snapshot[core.Expenses]) != 0 {
		t.Fatalf("failing table should degrade to empty, got %v", snapshot[core.Expenses])
	}
	if len(snapshot[core.Incomes]) != 1 {
		t.Fatalf("healthy table lost in degraded fetch: %v", snapshot[core.Incomes])
	}
}

func TestClient_FetchAllTotalFailure(t *testing.T) {
	fake := newFakeRemote()
	for _, c := range core.Collections() {
		fake.failing[TableFor(c)] = true
	}

	client := newTestClient(t, fake)
	snapshot, err := client.FetchAll(context.Background(), "u-1")
	if err == nil {
		t.Fatal("all tables failing must surface a connectivity error")
	}
	if snapshot != nil {
		t.Fatalf("failed fetch returned a snapshot: %v", snapshot)
	}
}

func TestClient_SaveItemUpsertIdempotent(t *testing.T) {
	fake := newFakeRemote()
	client := newTestClient(t, fake)
	ctx := context.Background()

	rec := core.Record{
		"id":     "exp-1",
		"userId": "u-1",
		"name":   "Renta",
		"months": []any{float64(0)},
	}

	if err := client.SaveItem(ctx, core.Expenses, rec); err != nil {
		t.Fatalf("SaveItem() error: %v", err)
	}
	if err := client.SaveItem(ctx, core.Expenses, rec); err != nil {
		t.Fatalf("repeated SaveItem() error: %v", err)
	}

	rows := fake.rows("expenses")
	if len(rows) != 1 {
		t.Fatalf("upsert by id should keep one row, got %d", len(rows))
	}
	row := rows["exp-1"]
	if row["gastonombre"] != "Renta" {
		t.Fatalf("remote row missing gastonombre: %v", row)
	}
	if row["months"] != "[0]" {
		t.Fatalf("months not JSON-text encoded on the wire: %#v", row["months"])
	}
}

func TestClient_SaveItemsEmptyIsNoop(t *testing.T) {
	fake := newFakeRemote()
	client := newTestClient(t, fake)

	if err := client.SaveItems(context.Background(), core.Expenses, nil); err != nil {
		t.Fatalf("SaveItems(nil) error: %v", err)
	}
	if len(fake.requests) != 0 {
		t.Fatalf("empty bulk save issued requests: %v", fake.requests)
	}
}

func TestClient_DeleteItem(t *testing.T) {
	fake := newFakeRemote()
	fake.seed("bank_accounts",
		map[string]any{"id": "acc-1", "userid": "u-1", "name": "BBVA"},
	)
	client := newTestClient(t, fake)
	ctx := context.Background()

	if err := client.DeleteItem(ctx, core.BankAccounts, "acc-1"); err != nil {
		t.Fatalf("DeleteItem() error: %v", err)
	}
	if len(fake.rows("bank_accounts")) != 0 {
		t.Fatal("row not deleted")
	}

	// Absent ids delete cleanly.
	if err := client.DeleteItem(ctx, core.BankAccounts, "acc-gone"); err != nil {
		t.Fatalf("deleting an absent id errored: %v", err)
	}
}

func TestClient_ErrorIncludesBodySnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Settings{URL: srv.URL, AnonKey: testAnonKey})
	err := client.SaveItem(context.Background(), core.Expenses, core.Record{"id": "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("error lost the response detail: %v", err)
	}
}
