package remote

import (
	"encoding/json"
	"reflect"
	"strings"

	"controljm/internal/core"
)

// ToRemote translates a local record into its remote row shape: declared
// fields are renamed per the table schema, sequence fields are JSON-text
// encoded, and undeclared fields pass through lower-cased. Pure, no I/O.
func ToRemote(record core.Record, collection core.Collection) map[string]any {
	if record == nil {
		return nil
	}
	schema := SchemaFor(collection)

	row := make(map[string]any, len(record))
	for key, value := range record {
		if schema != nil {
			if m, ok := schema.localIndex[key]; ok {
				if m.JSONText {
					row[m.Remote] = encodeJSONText(value)
				} else {
					row[m.Remote] = value
				}
				continue
			}
		}
		row[strings.ToLower(key)] = value
	}
	return row
}

// FromRemote is the exact inverse of ToRemote: declared columns are renamed
// back, JSON-text columns are parsed (an unparseable value degrades to an
// empty sequence rather than failing), and undeclared snake_case columns
// pass through camelCased.
func FromRemote(row map[string]any, collection core.Collection) core.Record {
	if row == nil {
		return nil
	}
	schema := SchemaFor(collection)

	record := make(core.Record, len(row))
	for key, value := range row {
		lower := strings.ToLower(key)
		if schema != nil {
			if m, ok := schema.remoteIndex[lower]; ok {
				if m.JSONText {
					value = decodeJSONText(value)
				}
				record[m.Local] = value
				continue
			}
		}
		record[snakeToCamel(key)] = value
	}
	return record
}

// encodeJSONText serializes a sequence value to its JSON string form.
// Non-sequence values pass through unchanged, matching the source behavior
// for columns that already hold text.
func encodeJSONText(value any) any {
	if value == nil {
		return nil
	}
	kind := reflect.TypeOf(value).Kind()
	if kind != reflect.Slice && kind != reflect.Array {
		return value
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return value
	}
	return string(raw)
}

// decodeJSONText parses a JSON-text column back into its sequence form.
// A parse failure yields an empty sequence, lossy but safe.
func decodeJSONText(value any) any {
	text, ok := value.(string)
	if !ok {
		return value
	}
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return []any{}
	}
	return out
}

func snakeToCamel(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	upperNext := false
	for _, r := range key {
		if r == '_' {
			upperNext = true
			continue
		}
		if upperNext && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upperNext = false
		b.WriteRune(r)
	}
	return b.String()
}
