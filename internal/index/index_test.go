package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func buildTestRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"config/loader.go":     "package config\n\n// LoadConfiguration reads the configuration file from disk.\nfunc LoadConfiguration(path string) error {\n\treturn nil\n}\n",
		"server/handler.go":    "package server\n\nfunc HandleRequest() {}\n",
		"docs/readme.md":       "The configuration loader reads settings from disk.\n",
		"node_modules/dep.js":  "function loadConfiguration() {}\n",
		"assets/logo.svg":      "<svg/>",
		".hidden/secret.go":    "package hidden\n",
	}
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestOpenAndSearch(t *testing.T) {
	ix, err := Open(buildTestRepo(t), nil)
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	defer ix.Close()

	if !ix.Available() {
		t.Fatal("index should be available")
	}

	hits, err := ix.Search(context.Background(), "configuration", 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits for an indexed term")
	}

	var paths []string
	for _, h := range hits {
		paths = append(paths, h.Path)
		if h.Score <= 0 {
			t.Errorf("hit %s has non-positive score", h.Path)
		}
		if h.Snippet == "" {
			t.Errorf("hit %s has no snippet", h.Path)
		}
	}
	joined := strings.Join(paths, " ")
	if !strings.Contains(joined, "config/loader.go") {
		t.Errorf("expected config/loader.go in %v", paths)
	}
	if strings.Contains(joined, "node_modules") || strings.Contains(joined, ".hidden") {
		t.Errorf("skip dirs leaked into the index: %v", paths)
	}
	if strings.Contains(joined, "logo.svg") {
		t.Errorf("non-source file indexed: %v", paths)
	}
}

func TestSearchSnippetAroundMatch(t *testing.T) {
	root := t.TempDir()
	padding := strings.Repeat("filler words here ", 40)
	content := "package deep\n\n// " + padding + "\nfunc FindTheNeedle() {}\n// " + padding + "\n"
	if err := os.WriteFile(filepath.Join(root, "deep.go"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ix, err := Open(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	hits, err := ix.Search(context.Background(), "FindTheNeedle", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if !strings.Contains(hits[0].Snippet, "FindTheNeedle") {
		t.Errorf("snippet does not surround the match: %q", hits[0].Snippet)
	}
	if !strings.HasPrefix(hits[0].Snippet, "...") {
		t.Errorf("mid-file snippet should mark the leading cut: %q", hits[0].Snippet)
	}
}

func TestRefresh(t *testing.T) {
	root := buildTestRepo(t)
	ix, err := Open(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	// New content becomes searchable after a refresh.
	rel := filepath.Join("config", "loader.go")
	updated := "package config\n\nfunc LoadZyzzyvaSettings() {}\n"
	if err := os.WriteFile(filepath.Join(root, rel), []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ix.Refresh([]string{rel}); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.Search(context.Background(), "LoadZyzzyvaSettings", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Error("refreshed content not searchable")
	}

	// A deleted file drops out of the results.
	if err := os.Remove(filepath.Join(root, rel)); err != nil {
		t.Fatal(err)
	}
	if err := ix.Refresh([]string{rel}); err != nil {
		t.Fatal(err)
	}
	hits, err = ix.Search(context.Background(), "LoadZyzzyvaSettings", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Path == rel {
			t.Error("deleted file still in the index")
		}
	}
}

func TestNilIndexDegrades(t *testing.T) {
	var ix *Index
	if ix.Available() {
		t.Error("nil index must report unavailable")
	}
	if err := ix.Close(); err != nil {
		t.Errorf("closing a nil index should be a no-op, got %v", err)
	}
	if err := ix.Refresh([]string{"a.go"}); err != nil {
		t.Errorf("refreshing a nil index should be a no-op, got %v", err)
	}
}

func TestExtractSnippet(t *testing.T) {
	t.Run("short content untouched", func(t *testing.T) {
		got := extractSnippet("func main() {}", "main")
		if got != "func main() {}" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("window around the term", func(t *testing.T) {
		content := strings.Repeat("a", 500) + " needle " + strings.Repeat("b", 500)
		got := extractSnippet(content, "needle")
		if !strings.Contains(got, "needle") {
			t.Errorf("term missing from %q", got)
		}
		if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
			t.Errorf("cuts unmarked: %q", got)
		}
		if len(got) > 2*snippetRadius+10 {
			t.Errorf("snippet too long: %d chars", len(got))
		}
	})

	t.Run("no match falls back to head", func(t *testing.T) {
		content := strings.Repeat("x", 400)
		got := extractSnippet(content, "absent")
		if !strings.HasPrefix(got, "xxx") || !strings.HasSuffix(got, "...") {
			t.Errorf("got %q", got)
		}
	})
}
