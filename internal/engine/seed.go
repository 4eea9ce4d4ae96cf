package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxErrorLogLines = 2000
	maxSeedFiles     = 3
	seedContextLines = 10
)

// FileRef is a file/line location mentioned in an error log.
type FileRef struct {
	Path string
	Line int
}

// fileRefPatterns match the location formats compilers and test runners
// emit: "backend/src/foo.ts(42,10)", "src/foo.go:42:10", "at src/foo.js:42".
var fileRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([\w./-]+\.\w{1,5})\((\d+),\d+\)`),
	regexp.MustCompile(`([\w./-]+\.\w{1,5}):(\d+)(?::\d+)?`),
	regexp.MustCompile(`(?:in|at)\s+([\w./-]+\.\w{1,5})\s+line\s+(\d+)`),
}

// ReadErrorLog reads the error/build log at path, capped to a bounded number
// of lines so a runaway log cannot blow up the prompt.
func ReadErrorLog(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open error log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) >= maxErrorLogLines {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read error log: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

// ExtractFileRefs pulls file/line references out of error text, deduplicated
// by path, capped at maxSeedFiles.
func ExtractFileRefs(text string) []FileRef {
	seen := make(map[string]bool)
	var refs []FileRef

	for _, pat := range fileRefPatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			path := m[1]
			if seen[path] {
				continue
			}
			line, err := strconv.Atoi(m[2])
			if err != nil || line < 1 {
				continue
			}
			seen[path] = true
			refs = append(refs, FileRef{Path: path, Line: line})
			if len(refs) >= maxSeedFiles {
				return refs
			}
		}
	}
	return refs
}

// SeedContext builds the excerpt block included in the initial prompt:
// content around each referenced line of each file named by the error text.
// Files that cannot be read are silently skipped; the error text itself is
// always enough to start exploring.
func SeedContext(repoRoot, errorText string) string {
	refs := ExtractFileRefs(errorText)
	if len(refs) == 0 {
		return ""
	}

	var b strings.Builder
	for _, ref := range refs {
		excerpt, err := readExcerpt(repoRoot, ref.Path, ref.Line, seedContextLines)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "--- %s (around line %d) ---\n%s\n", ref.Path, ref.Line, excerpt)
	}
	return b.String()
}

// readExcerpt returns content around a line of a file under repoRoot,
// with line numbers. The path must stay inside the repository.
func readExcerpt(repoRoot, relPath string, line, context int) (string, error) {
	full := filepath.Clean(filepath.Join(repoRoot, relPath))
	if !strings.HasPrefix(full, filepath.Clean(repoRoot)) {
		return "", fmt.Errorf("path %s is outside repository root", relPath)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	start := line - 1 - context
	if start < 0 {
		start = 0
	}
	end := line + context
	if end > len(lines) {
		end = len(lines)
	}
	if start >= len(lines) {
		return "", fmt.Errorf("line %d beyond end of %s", line, relPath)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%4d | %s\n", i+1, lines[i])
	}
	return b.String(), nil
}
