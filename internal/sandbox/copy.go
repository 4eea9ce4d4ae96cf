package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// copyExcludes are the volatile or generated directories never duplicated
// into a sandbox, on top of whatever the repository's own .gitignore names.
var copyExcludes = map[string]bool{
	".git":            true,
	"node_modules":    true,
	".ai_tools_cache": true,
	".ai_sandboxes":   true,
	"dist":            true,
	"build":           true,
	".next":           true,
	"target":          true,
	"__pycache__":     true,
	".pytest_cache":   true,
}

// copyRepo duplicates the working tree at src into dst.
func copyRepo(src, dst string) error {
	var matcher *gitignore.GitIgnore
	if m, err := gitignore.CompileIgnoreFile(filepath.Join(src, ".gitignore")); err == nil {
		matcher = m
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}

		rel, err := filepath.Rel(src, path)
		if err != nil || rel == "." {
			return nil
		}

		if copyExcludes[info.Name()] || (matcher != nil && matcher.MatchesPath(rel)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		if !info.Mode().IsRegular() {
			return nil // symlinks and devices are not copied
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
