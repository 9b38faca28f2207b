package feed

import (
	"encoding/json"
	"fmt"
	"os"
)

// tokenEntry is one record of a token list file: a JSON array of objects,
// each carrying a token_id plus arbitrary descriptive fields usable as
// filters (outcome, market slug, etc).
type tokenEntry map[string]any

// LoadTokenIDs reads asset IDs to subscribe from a JSON token list file.
// When filters is non-empty, only entries whose fields match every filter
// key/value are kept. Entries without a token_id are skipped.
func LoadTokenIDs(path string, filters map[string]string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feed: read token file: %w", err)
	}

	var entries []tokenEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("feed: parse token file %s: %w", path, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !matchesFilters(e, filters) {
			continue
		}
		id, _ := e["token_id"].(string)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func matchesFilters(e tokenEntry, filters map[string]string) bool {
	for k, want := range filters {
		got, _ := e[k].(string)
		if got != want {
			return false
		}
	}
	return true
}
