package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"controljm/internal/core"
)

const requestTimeout = 15 * time.Second

// Snapshot is the result of one full remote read, one slice per collection.
type Snapshot map[core.Collection][]core.Record

// Client issues one HTTPS request per collection operation against the
// remote backend's REST surface. Every request carries the anon credential
// both as api key and bearer token. Clients are cheap value holders; the
// Provider owns the live one.
type Client struct {
	settings Settings
	http     *http.Client
}

func NewClient(settings Settings) *Client {
	return &Client{
		settings: settings,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

// FetchAll reads every collection scoped to userID, fanning the five table
// reads out concurrently. A single failing table degrades to an empty slice
// so one bad read never aborts the whole fetch; when every table fails the
// whole operation is treated as a connectivity failure and returns nil.
func (c *Client) FetchAll(ctx context.Context, userID string) (Snapshot, error) {
	collections := core.Collections()

	var (
		mu       sync.Mutex
		snapshot = make(Snapshot, len(collections))
		failures []error
	)

	var g errgroup.Group
	for _, collection := range collections {
		g.Go(func() error {
			records, err := c.fetchTable(ctx, collection, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.WarnContext(ctx, "Remote table read failed",
					"collection", collection,
					"error", err)
				snapshot[collection] = []core.Record{}
				failures = append(failures, fmt.Errorf("%s: %w", collection, err))
				return nil
			}
			snapshot[collection] = records
			return nil
		})
	}
	g.Wait()

	if len(failures) == len(collections) {
		return nil, fmt.Errorf("fetch all collections: %w", failures[0])
	}
	return snapshot, nil
}

func (c *Client) fetchTable(ctx context.Context, collection core.Collection, userID string) ([]core.Record, error) {
	q := url.Values{}
	q.Set("select", "*")
	if userID != "" {
		q.Set("userid", "eq."+userID)
	}

	req, err := c.newRequest(ctx, http.MethodGet, TableFor(collection), q, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TableFor(collection), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("read %s: %w", TableFor(collection), err)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", TableFor(collection), err)
	}

	records := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, FromRemote(row, collection))
	}
	return records, nil
}

// SaveItem upserts one record into the mapped remote table, keyed by id.
func (c *Client) SaveItem(ctx context.Context, collection core.Collection, record core.Record) error {
	return c.SaveItems(ctx, collection, []core.Record{record})
}

// SaveItems bulk-upserts records keyed by id. Upsert-by-id makes repeated
// pushes of identical records idempotent.
func (c *Client) SaveItems(ctx context.Context, collection core.Collection, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		rows[i] = ToRemote(rec, collection)
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal %s rows: %w", TableFor(collection), err)
	}

	q := url.Values{}
	q.Set("on_conflict", "id")

	req, err := c.newRequest(ctx, http.MethodPost, TableFor(collection), q, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", TableFor(collection), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("upsert %s: %w", TableFor(collection), err)
	}
	return nil
}

// DeleteItem deletes one row by id. Deleting an absent id succeeds.
func (c *Client) DeleteItem(ctx context.Context, collection core.Collection, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	req, err := c.newRequest(ctx, http.MethodDelete, TableFor(collection), q, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", TableFor(collection), id, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("delete %s/%s: %w", TableFor(collection), id, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, table string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.settings.URL, table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, table, err)
	}
	req.Header.Set("apikey", c.settings.AnonKey)
	req.Header.Set("Authorization", "Bearer "+c.settings.AnonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("remote returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}
