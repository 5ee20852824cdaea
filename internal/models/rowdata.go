package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RowData is an ordered column name -> value map. Insertion order is preserved
// through JSON encoding and decoding so that the canonical serialization is
// stable across peers, which the signature check depends on.
type RowData struct {
	keys   []string
	values map[string]any
}

func NewRowData() *RowData {
	return &RowData{values: make(map[string]any)}
}

// RowDataFrom builds a RowData from alternating key/value pairs, keeping the
// given order.
func RowDataFrom(pairs ...any) *RowData {
	d := NewRowData()
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1])
	}
	return d
}

func (d *RowData) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

func (d *RowData) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the column names in insertion order.
func (d *RowData) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *RowData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

func (d *RowData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column name: %w", err)
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valueJSON, err := json.Marshal(d.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal column %q: %w", key, err)
		}
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *RowData) UnmarshalJSON(data []byte) error {
	d.keys = nil
	d.values = make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to decode row data: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row data must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to decode column name: %w", err)
		}
		key := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode column %q: %w", key, err)
		}
		d.Set(key, normalizeValue(value))
	}

	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to decode row data: %w", err)
	}
	return nil
}

// normalizeValue turns json.Number into int64 where it fits, float64 otherwise,
// so values bind cleanly as SQL parameters.
func normalizeValue(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}
