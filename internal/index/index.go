// Package index provides full-text search over repository source files.
// It backs the semantic_search tool and degrades gracefully when the index
// cannot be built.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"
)

const (
	maxIndexedFileSize = 512 * 1024
	snippetRadius      = 120
)

// Hit is one search result.
type Hit struct {
	Path    string
	Snippet string
	Score   float64
}

// Searcher is the query surface the tool layer depends on. A nil Searcher
// or one reporting Available() == false means callers should fall back to
// plain text search.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
	Available() bool
}

var indexedExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".java": true, ".rb": true, ".c": true,
	".h": true, ".cpp": true, ".hpp": true, ".cs": true, ".json": true,
	".yaml": true, ".yml": true, ".toml": true, ".md": true, ".sql": true,
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, "target": true, ".next": true, "__pycache__": true,
	".ai_sandboxes": true, ".ai_tools_cache": true,
}

// Index is an in-memory bleve index over the repository's source files.
type Index struct {
	mu     sync.RWMutex
	root   string
	idx    bleve.Index
	logger *zap.Logger
}

// Open walks the repository and builds the index in memory. The error return
// is advisory: callers typically log it and continue with a nil *Index.
func Open(root string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	ix := &Index{root: root, idx: idx, logger: logger}
	n, err := ix.indexTree()
	if err != nil {
		idx.Close()
		return nil, err
	}
	logger.Debug("index built", zap.Int("files", n))
	return ix, nil
}

func buildMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	docMapping.AddFieldMappingsAt("path", pathField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	docMapping.AddFieldMappingsAt("content", contentField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = docMapping
	return m
}

func (ix *Index) indexTree() (int, error) {
	batch := ix.idx.NewBatch()
	count := 0

	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || (strings.HasPrefix(d.Name(), ".") && path != ix.root) {
				return filepath.SkipDir
			}
			return nil
		}
		if !indexedExtensions[filepath.Ext(path)] {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxIndexedFileSize {
			return nil
		}

		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		doc := map[string]any{"path": rel, "content": string(data)}
		if err := batch.Index(rel, doc); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk repository: %w", err)
	}

	if err := ix.idx.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to index repository: %w", err)
	}
	return count, nil
}

// Available reports whether the index can serve queries.
func (ix *Index) Available() bool {
	return ix != nil && ix.idx != nil
}

// Search returns the top k files matching the query, each with a short
// snippet around the first matched term.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if !ix.Available() {
		return nil, fmt.Errorf("index is not available")
	}
	if k <= 0 {
		k = 5
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = k
	req.Fields = []string{"path", "content"}

	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Path: h.ID, Score: h.Score}
		if content, ok := h.Fields["content"].(string); ok {
			hit.Snippet = extractSnippet(content, query)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Refresh reindexes the given repository-relative paths, removing entries
// for files that no longer exist.
func (ix *Index) Refresh(paths []string) error {
	if !ix.Available() {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := ix.idx.NewBatch()
	for _, rel := range paths {
		full := filepath.Join(ix.root, rel)
		if !indexedExtensions[filepath.Ext(rel)] {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			batch.Delete(rel)
			continue
		}
		if len(data) > maxIndexedFileSize {
			continue
		}
		if err := batch.Index(rel, map[string]any{"path": rel, "content": string(data)}); err != nil {
			return err
		}
	}
	return ix.idx.Batch(batch)
}

// Close releases the index.
func (ix *Index) Close() error {
	if ix == nil || ix.idx == nil {
		return nil
	}
	return ix.idx.Close()
}

// extractSnippet returns a window of text around the first occurrence of any
// query term, falling back to the start of the file.
func extractSnippet(content, query string) string {
	lower := strings.ToLower(content)
	pos := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := strings.Index(lower, term); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		pos = 0
	}

	start := pos - snippetRadius
	if start < 0 {
		start = 0
	}
	end := pos + snippetRadius
	if end > len(content) {
		end = len(content)
	}

	snippet := strings.TrimSpace(content[start:end])
	snippet = strings.ReplaceAll(snippet, "\n", " ")
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}
