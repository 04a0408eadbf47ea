// Package blob converts JSONB column values to and from Go values.
//
// Older writers stored some JSONB columns as a JSON string holding serialized JSON
// ("\"{\\\"stage\\\":\\\"review\\\"}\"") rather than the object itself. Decode accepts
// both forms so callers only ever deal with typed values.
package blob

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmpty is returned by Decode when the column is NULL, empty or JSON null.
var ErrEmpty = errors.New("empty json blob")

// Present reports whether raw holds a non-null JSON value.
func Present(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Decode unmarshals raw into v, unwrapping one level of string encoding.
func Decode(raw []byte, v any) error {
	if !Present(raw) {
		return ErrEmpty
	}

	trimmed := bytes.TrimSpace(raw)

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return fmt.Errorf("decode string-encoded blob: %w", err)
		}

		trimmed = bytes.TrimSpace([]byte(inner))
		if !Present(trimmed) {
			return ErrEmpty
		}
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}

	return nil
}

// Encode marshals v for a JSONB column. Nil values encode to nil so the column is
// stored as SQL NULL.
func Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode blob: %w", err)
	}

	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	return data, nil
}
