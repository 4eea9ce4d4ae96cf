package tools

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	matchesPerFile = 3
	maxMatchFiles  = 10
)

// sourceExtensions are the file types scanned when no filter is given.
var sourceExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".java": true, ".rb": true, ".c": true,
	".h": true, ".cpp": true, ".cs": true, ".json": true, ".yaml": true,
	".yml": true, ".toml": true, ".sql": true,
}

// skipDirs are never descended into during content scans.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "dist": true, "build": true,
	".next": true, "target": true, "__pycache__": true, ".pytest_cache": true,
	".ai_sandboxes": true, ".ai_tools_cache": true,
}

type fileMatch struct {
	File    string   `json:"file"`
	Matches []string `json:"matches"` // "line: text"
}

// searchFilesImpl scans file contents for a regex, with per-file and overall
// caps so one greedy pattern cannot flood the conversation.
func searchFilesImpl(repoRoot, pattern, fileType string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	var results []fileMatch
	err = walkSource(repoRoot, fileType, func(relPath string, content []byte) bool {
		var matches []string
		for i, line := range strings.Split(string(content), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%d: %s", i+1, strings.TrimSpace(line)))
				if len(matches) >= matchesPerFile {
					break
				}
			}
		}
		if len(matches) > 0 {
			results = append(results, fileMatch{File: relPath, Matches: matches})
		}
		return len(results) < maxMatchFiles
	})
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(map[string]any{
		"pattern": pattern,
		"files":   len(results),
		"results": results,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// findUsageImpl lists files referencing a symbol. A thin specialization of
// the content scan with a word-boundary pattern.
func findUsageImpl(repoRoot, symbol, fileType string) (string, error) {
	return searchFilesImpl(repoRoot, `\b`+regexp.QuoteMeta(symbol)+`\b`, fileType)
}

// walkSource visits source files under root, honoring the skip list and an
// optional extension filter. The visitor returns false to stop early.
func walkSource(root, fileType string, visit func(relPath string, content []byte) bool) error {
	wantExt := ""
	if fileType != "" {
		wantExt = "." + strings.TrimPrefix(fileType, ".")
	}

	stop := fmt.Errorf("walk stopped")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || (strings.HasPrefix(d.Name(), ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if wantExt != "" {
			if ext != wantExt {
				return nil
			}
		} else if !sourceExtensions[ext] {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if !visit(rel, content) {
			return stop
		}
		return nil
	})
	if err == stop {
		return nil
	}
	return err
}
