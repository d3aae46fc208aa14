package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/mergeq/internal/ir"
)

// marshalPayload converts an entry payload to canonical JSON TEXT for storage.
func marshalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back to a payload.
//
// Numbers decode as json.Number so integers beyond 2^53 survive, then
// integral numbers are narrowed to int64 so payloads re-hash to the value
// the engine recorded.
func unmarshalPayload(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	v, err := normalizeNumbers(obj)
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return v.(map[string]any), nil
}

func normalizeNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", val)
		}
		return n, nil
	case []any:
		for i, elem := range val {
			n, err := normalizeNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	case map[string]any:
		for k, elem := range val {
			n, err := normalizeNumbers(elem)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	}
	return v, nil
}
