package tools

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed manifest.json
var manifestJSON []byte

// ManifestEntry is one declarative built-in tool schema.
type ManifestEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// LoadManifest parses the embedded tool schema manifest.
func LoadManifest() (map[string]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := json.Unmarshal(manifestJSON, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse tool manifest: %w", err)
	}

	byName := make(map[string]ManifestEntry, len(entries))
	for _, e := range entries {
		if _, dup := byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate manifest entry: %s", e.Name)
		}
		byName[e.Name] = e
	}
	return byName, nil
}
