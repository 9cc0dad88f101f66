// Package msgpack provides MessagePack encoding/decoding for scan tickets and
// scan configurations exchanged with remote callers.
package msgpack

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode deserializes MessagePack data into a Go value.
// The v parameter should be a pointer to the target structure.
// Unknown map keys are ignored.
//
// Example:
//
//	type Ticket struct {
//	    Table   string   `msgpack:"table"`
//	    Filters []string `msgpack:"filters,omitempty"`
//	}
//
//	var t Ticket
//	err := msgpack.Decode(data, &t)
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty MessagePack data")
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	return nil
}

// DecodeStrict is like Decode but rejects map keys that have no matching
// struct field. Use it where a misspelled key would silently change meaning.
func DecodeStrict(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty MessagePack data")
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	return nil
}

// Encode serializes a Go value into MessagePack format.
// Struct fields are written as a map keyed by their msgpack tags.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	return buf.Bytes(), nil
}
