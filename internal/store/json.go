package store

import (
	"bytes"

	"github.com/goccy/go-json"
)

// MarshalIndent encodes v with two-space indent and HTML escaping disabled.
func MarshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteJSONAtomic(path string, v any) error {
	b, err := MarshalIndent(v)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b)
}
