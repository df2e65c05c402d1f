package core

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Record is the JSON-canonical shape of an entity as it flows through the
// local store, the remote mapper and the sync coordinator. Records are
// written whole (full-record replace, never a partial patch), so unknown
// fields survive a round trip through either store untouched.
//
// A Record obtained via Decode has encoding/json's canonical value types:
// numbers are float64, sequences are []any.
type Record map[string]any

// ID returns the record's id, or "" when absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// UserID returns the record's owner scope, or "" when absent.
func (r Record) UserID() string {
	uid, _ := r["userId"].(string)
	return uid
}

// SetUserID stamps the owner scope onto the record.
func (r Record) SetUserID(userID string) {
	r["userId"] = userID
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		// Records always originate from JSON, so this cannot fail on real data.
		panic(fmt.Sprintf("core: clone record: %v", err))
	}
	var out Record
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("core: clone record: %v", err))
	}
	return out
}

// Encode converts a typed entity into its canonical Record form.
func Encode(v any) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return Decode(raw)
}

// Decode parses raw JSON into a canonical Record.
func Decode(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// FilterByUser returns the records owned by userID, preserving order.
// The store itself does not enforce scope, callers filter.
func FilterByUser(records []Record, userID string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.UserID() == userID {
			out = append(out, rec)
		}
	}
	return out
}

// NormalizeMonths dedupes and sorts a months sequence into the strictly
// ascending [0,11] form the model requires. Out-of-range values are dropped.
func NormalizeMonths(months []int) []int {
	seen := make(map[int]struct{}, len(months))
	out := make([]int, 0, len(months))
	for _, m := range months {
		if m < 0 || m > 11 {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Ints(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeMonthsField rewrites the record's months field into the canonical
// ascending deduplicated form. Records without months, or with a months value
// that is not a plain integer sequence, are left untouched so validation can
// reject the malformed shape.
func (r Record) NormalizeMonthsField() {
	raw, ok := r["months"].([]any)
	if !ok {
		return
	}
	months := make([]int, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok || f != float64(int(f)) {
			return
		}
		months = append(months, int(f))
	}
	normalized := NormalizeMonths(months)
	if normalized == nil {
		delete(r, "months")
		return
	}
	out := make([]any, len(normalized))
	for i, m := range normalized {
		out[i] = float64(m)
	}
	r["months"] = out
}
