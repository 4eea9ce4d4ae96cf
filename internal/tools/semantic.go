package tools

import (
	"context"
	"encoding/json"

	"github.com/buildmedic/buildmedic/internal/index"
)

// semanticSearchImpl queries the codebase index by meaning. A missing or
// unbuildable index degrades to a descriptive payload, never an error: the
// model should fall back to search_files on its own.
func semanticSearchImpl(ctx context.Context, searcher index.Searcher, query string, k int) (string, error) {
	if k <= 0 {
		k = 5
	}

	if searcher == nil || !searcher.Available() {
		out, err := json.Marshal(map[string]any{
			"status":     "unavailable",
			"reason":     "no semantic index for this repository",
			"suggestion": "use search_files with a regex pattern instead",
			"query":      query,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	hits, err := searcher.Search(ctx, query, k)
	if err != nil {
		// Index faults degrade the same way as absence.
		out, jerr := json.Marshal(map[string]any{
			"status":     "unavailable",
			"reason":     err.Error(),
			"suggestion": "use search_files with a regex pattern instead",
			"query":      query,
		})
		if jerr != nil {
			return "", jerr
		}
		return string(out), nil
	}

	type hitResult struct {
		Path    string  `json:"path"`
		Snippet string  `json:"snippet"`
		Score   float64 `json:"score"`
	}
	results := make([]hitResult, len(hits))
	for i, h := range hits {
		results[i] = hitResult{Path: h.Path, Snippet: h.Snippet, Score: h.Score}
	}

	out, err := json.Marshal(map[string]any{
		"status":  "ok",
		"query":   query,
		"count":   len(results),
		"results": results,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
