package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractFileRefs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []FileRef
	}{
		{
			name: "typescript compiler format",
			text: "backend/src/foo.ts(42,10): error TS2345: type mismatch",
			want: []FileRef{{Path: "backend/src/foo.ts", Line: 42}},
		},
		{
			name: "colon separated format",
			text: "internal/server/handler.go:17:3: undefined: frobnicate",
			want: []FileRef{{Path: "internal/server/handler.go", Line: 17}},
		},
		{
			name: "prose format",
			text: `Traceback: in app/models.py line 88`,
			want: []FileRef{{Path: "app/models.py", Line: 88}},
		},
		{
			name: "deduplicated by path",
			text: "pkg/a.go:10: first\npkg/a.go:20: second",
			want: []FileRef{{Path: "pkg/a.go", Line: 10}},
		},
		{
			name: "no references",
			text: "build failed with exit status 2",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFileRefs(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d refs %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ref %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractFileRefsCap(t *testing.T) {
	text := "a.go:1: x\nb.go:2: x\nc.go:3: x\nd.go:4: x\ne.go:5: x"
	got := ExtractFileRefs(text)
	if len(got) != maxSeedFiles {
		t.Errorf("got %d refs, want cap of %d", len(got), maxSeedFiles)
	}
}

func TestReadErrorLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.log")
	content := "line one\nline two\nline three"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadErrorLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != content {
		t.Errorf("got %q, want %q", got, content)
	}

	if _, err := ReadErrorLog(filepath.Join(dir, "missing.log")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSeedContext(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	var lines []string
	for i := 1; i <= 40; i++ {
		lines = append(lines, "code line")
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	got := SeedContext(dir, "src/main.go:20:5: undefined: widget")
	if !strings.Contains(got, "--- src/main.go (around line 20) ---") {
		t.Errorf("missing excerpt header in %q", got)
	}
	if !strings.Contains(got, "  20 | code line") {
		t.Errorf("missing numbered line in %q", got)
	}
	// Ten lines of context either side.
	if strings.Contains(got, "   9 | ") || strings.Contains(got, "  31 | ") {
		t.Errorf("context window too wide: %q", got)
	}
}

func TestSeedContextSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	got := SeedContext(dir, "missing/file.go:10: some error")
	if got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestSeedContextRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	if _, err := readExcerpt(dir, "../../etc/passwd.txt", 1, 5); err == nil {
		t.Error("expected error for path escaping the repository")
	}
}
