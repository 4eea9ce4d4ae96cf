package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// importPatterns cover the dependency shapes seen across the stacks this
// runs against: ES modules, bare side-effect imports, CommonJS require, and
// Go import blocks.
var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`import\s+(?:[\w{}*,\s]+)\s+from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`import\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`),
	regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"\s*$`), // inside a Go import block
}

var goImportBlock = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)

// findImportsImpl extracts the dependencies a file declares, via structural
// pattern matching rather than full parsing.
func findImportsImpl(repoRoot, file string) (string, error) {
	filePath, err := resolveInRepo(repoRoot, file)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", file, err)
	}
	content := string(data)

	seen := make(map[string]bool)
	var imports []string
	add := func(dep string) {
		if dep != "" && !seen[dep] {
			seen[dep] = true
			imports = append(imports, dep)
		}
	}

	for _, pat := range importPatterns[:3] {
		for _, m := range pat.FindAllStringSubmatch(content, -1) {
			add(m[1])
		}
	}
	if strings.HasSuffix(file, ".go") {
		for _, block := range goImportBlock.FindAllStringSubmatch(content, -1) {
			for _, line := range strings.Split(block[1], "\n") {
				if m := importPatterns[3].FindStringSubmatch(line); m != nil {
					add(m[1])
				}
			}
		}
	}

	out, err := json.Marshal(map[string]any{
		"file":    file,
		"imports": imports,
		"count":   len(imports),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
