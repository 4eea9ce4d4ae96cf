package sandbox

import (
	"os"
	"path/filepath"
)

// projectType drives the Docker image choice for shell operations.
type projectType string

const (
	projectGo      projectType = "go"
	projectNode    projectType = "node"
	projectPython  projectType = "python"
	projectRust    projectType = "rust"
	projectUnknown projectType = "unknown"
)

// detectProjectType classifies a directory by its build manifest.
func detectProjectType(dir string) projectType {
	manifests := []struct {
		file string
		typ  projectType
	}{
		{"go.mod", projectGo},
		{"package.json", projectNode},
		{"pyproject.toml", projectPython},
		{"requirements.txt", projectPython},
		{"Cargo.toml", projectRust},
	}
	for _, m := range manifests {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.typ
		}
	}
	return projectUnknown
}

// dockerImageFor returns the image used for shell operations in dir.
// A configured override always wins.
func dockerImageFor(dir string, config Config) string {
	if config.DockerImage != "" {
		return config.DockerImage
	}
	switch detectProjectType(dir) {
	case projectGo:
		return "golang:alpine"
	case projectNode:
		return "node:alpine"
	case projectPython:
		return "python:alpine"
	case projectRust:
		return "rust:alpine"
	default:
		return "alpine:latest"
	}
}
