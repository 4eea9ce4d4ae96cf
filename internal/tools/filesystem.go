package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	// maxContentChars caps any file content returned to the model.
	maxContentChars = 8000
	// listCap bounds each of the file and directory lists per call.
	listCap = 20
	// singleLineContext is the context radius when reading one line.
	singleLineContext = 5

	truncationMarker = "/* truncated */"
)

// resolveInRepo joins a relative path against the repository root and
// rejects anything that escapes it.
func resolveInRepo(repoRoot, rel string) (string, error) {
	full := filepath.Clean(filepath.Join(repoRoot, rel))
	if !strings.HasPrefix(full, filepath.Clean(repoRoot)) {
		return "", fmt.Errorf("path %s is outside repository root", rel)
	}
	return full, nil
}

// listDirectoryImpl lists the immediate children of a directory, dot entries
// skipped, both lists capped.
func listDirectoryImpl(repoRoot, path string) (string, error) {
	dirPath, err := resolveInRepo(repoRoot, path)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return "", fmt.Errorf("cannot list %s: %w", path, err)
	}

	var files, dirs []string
	filesTruncated, dirsTruncated := false, false
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			if len(dirs) >= listCap {
				dirsTruncated = true
				continue
			}
			dirs = append(dirs, name)
		} else {
			if len(files) >= listCap {
				filesTruncated = true
				continue
			}
			files = append(files, name)
		}
	}
	sort.Strings(files)
	sort.Strings(dirs)

	result := map[string]any{
		"path":        path,
		"files":       files,
		"directories": dirs,
		"truncated":   filesTruncated || dirsTruncated,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readFileImpl reads a file, optionally restricted to a line or line range.
// Content over the cap is cut with an explicit marker so the model knows it
// saw a prefix.
func readFileImpl(repoRoot, path, lineSpec string) (string, error) {
	filePath, err := resolveInRepo(repoRoot, path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")

	start, end := 1, len(lines)
	if lineSpec != "" {
		start, end, err = parseLineSpec(lineSpec, len(lines))
		if err != nil {
			return "", err
		}
	}

	var b strings.Builder
	for i := start; i <= end && i <= len(lines); i++ {
		fmt.Fprintf(&b, "%4d | %s\n", i, lines[i-1])
	}
	content := b.String()

	truncated := false
	if len(content) > maxContentChars {
		content = content[:maxContentChars] + "\n" + truncationMarker
		truncated = true
	}

	result := map[string]any{
		"path":        path,
		"lines":       fmt.Sprintf("%d-%d", start, end),
		"total_lines": len(lines),
		"content":     content,
		"truncated":   truncated,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseLineSpec interprets "42" as line 42 with context, "10-80" as a range.
func parseLineSpec(spec string, total int) (int, int, error) {
	clamp := func(n int) int {
		if n < 1 {
			return 1
		}
		if n > total {
			return total
		}
		return n
	}

	if a, b, found := strings.Cut(spec, "-"); found {
		start, err1 := strconv.Atoi(strings.TrimSpace(a))
		end, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || start > end {
			return 0, 0, fmt.Errorf("invalid line range %q", spec)
		}
		return clamp(start), clamp(end), nil
	}

	line, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid line spec %q", spec)
	}
	return clamp(line - singleLineContext), clamp(line + singleLineContext), nil
}
