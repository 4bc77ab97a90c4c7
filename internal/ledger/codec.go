package ledger

import (
	"encoding/json"
	"fmt"
)

// DecodeList parses a JSON array value read from the store.
// An absent value decodes to an empty list.
func DecodeList[T any](raw string, ok bool) ([]T, error) {
	if !ok || raw == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// DecodeProfile parses a session snapshot.
func DecodeProfile(raw string) (Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

// Encode serializes any ledger value for storage.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(b), nil
}
