package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/relir/internal/value"
)

// marshalColumns converts column names to canonical JSON TEXT for the
// catalog.
func marshalColumns(cols []string) (string, error) {
	s, err := value.CanonicalString(cols)
	if err != nil {
		return "", fmt.Errorf("marshal columns: %w", err)
	}
	return s, nil
}

// marshalKeys converts unique keys to canonical JSON TEXT.
func marshalKeys(keys [][]string) (string, error) {
	items := make([]any, len(keys))
	for i, k := range keys {
		items[i] = k
	}
	s, err := value.CanonicalString(items)
	if err != nil {
		return "", fmt.Errorf("marshal unique keys: %w", err)
	}
	return s, nil
}

func unmarshalColumns(data string) ([]string, error) {
	var cols []string
	if err := json.Unmarshal([]byte(data), &cols); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	return cols, nil
}

func unmarshalKeys(data string) ([][]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var keys [][]string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal unique keys: %w", err)
	}
	return keys, nil
}
