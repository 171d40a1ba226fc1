package models

import (
	"encoding/json"
	"fmt"
)

// APIEnvelope is the response wrapper used by the site's JSON API. Data stays
// raw so each caller can decode the shape it expects.
type APIEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a raw API body into the common envelope.
func DecodeEnvelope(body []byte) (*APIEnvelope, error) {
	var envelope APIEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected API response format: %w", err)
	}
	return &envelope, nil
}
