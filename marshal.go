package loom

import "encoding/json"

// Marshal creates a single point of change if the encoding changes.
func Marshal[T any](t *T) ([]byte, error) {
	return json.Marshal(t)
}

// Unmarshal creates a single point of change if the encoding changes.
func Unmarshal[T any](b []byte, t *T) error {
	if len(b) == 0 {
		return nil
	}

	return json.Unmarshal(b, t)
}
