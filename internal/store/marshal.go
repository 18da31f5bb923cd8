package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalDoc converts a record to JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what the remote sent.
func marshalDoc(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal doc: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDoc[T any](data string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("unmarshal doc: %w", err)
	}
	return v, nil
}

// indexArg converts a Go lookup value into what json_extract yields for the
// stored JSON: booleans are stored as true/false and extracted as 1/0.
func indexArg(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
