// Package models holds the typed results of Frank Energie queries and the
// decoders that build them from a response's raw data member.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrUnexpectedResponse is returned when the expected root field is missing or null
var ErrUnexpectedResponse = errors.New("unexpected response")

// decodeRoot unmarshals data.<field> into v
func decodeRoot(data json.RawMessage, field string, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: no data", ErrUnexpectedResponse)
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	raw, ok := root[field]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%w: %s is missing", ErrUnexpectedResponse, field)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", field, err)
	}
	return nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
