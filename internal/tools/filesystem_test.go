package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveInRepo(t *testing.T) {
	root := t.TempDir()

	if _, err := resolveInRepo(root, "src/main.go"); err != nil {
		t.Errorf("relative path rejected: %v", err)
	}
	if _, err := resolveInRepo(root, "../escape.txt"); err == nil {
		t.Error("parent traversal should be rejected")
	}
	if _, err := resolveInRepo(root, "a/../../escape.txt"); err == nil {
		t.Error("nested traversal should be rejected")
	}
}

func TestParseLineSpec(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		total     int
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{name: "single line with context", spec: "42", total: 100, wantStart: 37, wantEnd: 47},
		{name: "single line near top", spec: "2", total: 100, wantStart: 1, wantEnd: 7},
		{name: "single line near bottom", spec: "99", total: 100, wantStart: 94, wantEnd: 100},
		{name: "explicit range", spec: "10-80", total: 100, wantStart: 10, wantEnd: 80},
		{name: "range clamped to file", spec: "90-200", total: 100, wantStart: 90, wantEnd: 100},
		{name: "inverted range", spec: "50-10", total: 100, wantErr: true},
		{name: "garbage", spec: "abc", total: 100, wantErr: true},
		{name: "half garbage range", spec: "10-xyz", total: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseLineSpec(tt.spec, tt.total)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("got %d-%d, want %d-%d", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestReadFileImpl(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "src/app.go", "package app\n\nfunc Run() {}\n")

	out, err := readFileImpl(root, "src/app.go", "")
	if err != nil {
		t.Fatal(err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	content, _ := result["content"].(string)
	if !strings.Contains(content, "   1 | package app") {
		t.Errorf("content missing numbered lines: %q", content)
	}
	if result["truncated"] != false {
		t.Error("small file should not be truncated")
	}
}

func TestReadFileImplTruncates(t *testing.T) {
	root := t.TempDir()
	var b strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "line with some padding content %d\n", i)
	}
	writeTestFile(t, root, "big.txt", b.String())

	out, err := readFileImpl(root, "big.txt", "")
	if err != nil {
		t.Fatal(err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if result["truncated"] != true {
		t.Error("oversized content should report truncation")
	}
	content, _ := result["content"].(string)
	if !strings.HasSuffix(content, truncationMarker) {
		t.Errorf("content should end with the marker, got %q", content[len(content)-40:])
	}
}

func TestReadFileImplLineSpec(t *testing.T) {
	root := t.TempDir()
	var lines []string
	for i := 1; i <= 50; i++ {
		lines = append(lines, fmt.Sprintf("content %d", i))
	}
	writeTestFile(t, root, "f.txt", strings.Join(lines, "\n"))

	out, err := readFileImpl(root, "f.txt", "20")
	if err != nil {
		t.Fatal(err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if result["lines"] != "15-25" {
		t.Errorf("lines = %v, want 15-25", result["lines"])
	}
	content, _ := result["content"].(string)
	if strings.Contains(content, "content 14") || strings.Contains(content, "content 26") {
		t.Error("window leaked beyond the requested range")
	}
}

func TestListDirectoryImpl(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "zeta.go", "")
	writeTestFile(t, root, "alpha.go", "")
	writeTestFile(t, root, ".hidden", "")
	writeTestFile(t, root, "pkg/inner.go", "")
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := listDirectoryImpl(root, ".")
	if err != nil {
		t.Fatal(err)
	}

	var result struct {
		Files       []string `json:"files"`
		Directories []string `json:"directories"`
		Truncated   bool     `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}

	if len(result.Files) != 2 || result.Files[0] != "alpha.go" || result.Files[1] != "zeta.go" {
		t.Errorf("files = %v, want sorted [alpha.go zeta.go]", result.Files)
	}
	if len(result.Directories) != 1 || result.Directories[0] != "pkg" {
		t.Errorf("directories = %v", result.Directories)
	}
	if result.Truncated {
		t.Error("small listing should not be truncated")
	}
}

func TestListDirectoryImplCaps(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < listCap+5; i++ {
		writeTestFile(t, root, fmt.Sprintf("file%02d.go", i), "")
	}

	out, err := listDirectoryImpl(root, ".")
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		Files     []string `json:"files"`
		Truncated bool     `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Files) != listCap {
		t.Errorf("files = %d, want %d", len(result.Files), listCap)
	}
	if !result.Truncated {
		t.Error("overflow should set truncated")
	}
}
