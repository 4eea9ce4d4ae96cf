package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ForbiddenPaths are files a proposal must never touch, regardless of what
// the model suggests.
var ForbiddenPaths = []string{
	".env",
	".env.*",
	"config/secrets*",
	".git",
	".github",
	".gitignore",
	".gitattributes",
	"go.sum",
	"package-lock.json",
	"yarn.lock",
	"node_modules",
	"dist",
	"build",
	".venv",
	".DS_Store",
}

// ValidateChangePaths rejects proposals whose changes point outside the
// repository or at protected files.
func ValidateChangePaths(p Proposal) error {
	for _, c := range p.Changes {
		if err := checkChangePath(c.File); err != nil {
			return err
		}
	}
	return nil
}

func checkChangePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("path %s is absolute, must be relative to repo root", path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path %s contains '..', which is not allowed", path)
	}

	normalized := strings.ToLower(filepath.ToSlash(path))
	segments := strings.Split(normalized, "/")
	for _, forbidden := range ForbiddenPaths {
		forbiddenLower := strings.ToLower(forbidden)
		if strings.HasSuffix(forbiddenLower, "*") {
			prefix := strings.TrimSuffix(forbiddenLower, "*")
			if strings.Contains(prefix, "/") {
				// Multi-segment patterns match the subtree at any depth.
				if strings.HasPrefix(normalized, prefix) || strings.Contains(normalized, "/"+prefix) {
					return fmt.Errorf("path %s matches forbidden pattern %s", path, forbidden)
				}
				continue
			}
			for _, seg := range segments {
				if strings.HasPrefix(seg, prefix) {
					return fmt.Errorf("path %s matches forbidden pattern %s", path, forbidden)
				}
			}
			continue
		}
		for _, seg := range segments {
			if seg == forbiddenLower {
				return fmt.Errorf("path %s touches protected entry %s", path, forbidden)
			}
		}
	}
	return nil
}
