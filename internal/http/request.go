package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"controljm/internal/core"
)

// maxBodyBytes bounds request bodies; records are small JSON documents.
const maxBodyBytes = 256 * 1024

var errBodyTooLarge = errors.New("request body too large")

// parseCollection resolves the {collection} path segment to a known
// collection name.
func parseCollection(r *http.Request) (core.Collection, error) {
	collection := core.Collection(strings.TrimSpace(r.PathValue("collection")))
	if !collection.IsValid() {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return collection, nil
}

// requestUserID resolves the record owner for this request. There is a single
// local identity; the query override exists for tests and tooling.
func requestUserID(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("user")); v != "" {
		return v
	}
	return core.DefaultUser().ID
}

// decodeBody decodes a size-limited JSON body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return errBodyTooLarge
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// decodeRecord decodes the request body into a canonical record.
func decodeRecord(r *http.Request) (core.Record, error) {
	var record core.Record
	if err := decodeBody(r, &record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.New("empty record body")
	}
	return record, nil
}

// validateRecord checks the record against its collection's typed model.
// Fields outside the model pass through untouched; only the declared shape is
// enforced.
func validateRecord(collection core.Collection, record core.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	switch collection {
	case core.Expenses:
		var v core.Expense
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("malformed expense: %w", err)
		}
		return v.Validate()
	case core.Incomes:
		var v core.Income
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("malformed income: %w", err)
		}
		return v.Validate()
	case core.Payments:
		var v core.Payment
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("malformed payment: %w", err)
		}
		return v.Validate()
	case core.Goals:
		var v core.Goal
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("malformed goal: %w", err)
		}
		return v.Validate()
	case core.BankAccounts:
		var v core.BankAccount
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("malformed bank account: %w", err)
		}
		return v.Validate()
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
}
