package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// EncodeCursor packs the sort-key values of a row into an opaque, URL-safe token.
func EncodeCursor(values []any) (string, error) {
	norm := make([]any, len(values))
	for i, v := range values {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		norm[i] = v
	}
	data, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("encode seek cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor reverses EncodeCursor. Integral numbers come back as int64, other
// numbers as float64. Only non-null scalars are accepted.
func DecodeCursor(raw string) ([]any, error) {
	invalid := &ParamError{Param: ParamSeek, Message: "invalid seek parameter"}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(data) == 0 {
		return nil, invalid
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var values []any
	if err := dec.Decode(&values); err != nil || len(values) == 0 {
		return nil, invalid
	}
	// anything but whitespace after the array, including a stray ']', is rejected
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalid
	}
	for i, v := range values {
		switch x := v.(type) {
		case string, bool:
		case json.Number:
			if n, err := x.Int64(); err == nil {
				values[i] = n
			} else if f, err := x.Float64(); err == nil {
				values[i] = f
			} else {
				return nil, invalid
			}
		default:
			return nil, invalid
		}
	}
	return values, nil
}
