// Package tools implements the built-in tool surface exposed to the model:
// filesystem inspection, code search, dynamic tool synthesis, and sandbox
// control. Tool descriptions and schemas live in manifest.json.
package tools

import (
	"context"
	"fmt"

	"github.com/buildmedic/buildmedic/internal/engine"
	"github.com/buildmedic/buildmedic/internal/index"
	"github.com/buildmedic/buildmedic/internal/sandbox"
	"github.com/buildmedic/buildmedic/internal/tools/synth"
	"go.uber.org/zap"
)

// Deps carries everything the built-in tools need.
type Deps struct {
	RepoRoot    string
	Searcher    index.Searcher
	Synthesizer *synth.Synthesizer
	Sandboxes   *sandbox.Manager
	Logger      *zap.Logger
}

// NewRegistry assembles the full tool registry: every manifest entry bound to
// its implementation, plus previously synthesized tools loaded from the
// persistent cache. The returned map is shared with create_dynamic_tool so
// synthesis during a session is visible on the next turn.
func NewRegistry(deps Deps) (engine.ToolRegistry, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	manifest, err := LoadManifest()
	if err != nil {
		return nil, fmt.Errorf("failed to load tool manifest: %w", err)
	}

	registry := make(engine.ToolRegistry, len(manifest))

	fns := map[string]engine.ToolFunc{
		"list_directory": func(ctx context.Context, args map[string]any) (string, error) {
			return listDirectoryImpl(deps.RepoRoot, stringArg(args, "path"))
		},
		"read_file": func(ctx context.Context, args map[string]any) (string, error) {
			return readFileImpl(deps.RepoRoot, stringArg(args, "path"), stringArg(args, "lines"))
		},
		"search_files": func(ctx context.Context, args map[string]any) (string, error) {
			return searchFilesImpl(deps.RepoRoot, stringArg(args, "pattern"), stringArg(args, "file_type"))
		},
		"find_imports": func(ctx context.Context, args map[string]any) (string, error) {
			return findImportsImpl(deps.RepoRoot, stringArg(args, "file"))
		},
		"find_usage": func(ctx context.Context, args map[string]any) (string, error) {
			return findUsageImpl(deps.RepoRoot, stringArg(args, "symbol"), stringArg(args, "file_type"))
		},
		"semantic_search": func(ctx context.Context, args map[string]any) (string, error) {
			return semanticSearchImpl(ctx, deps.Searcher, stringArg(args, "query"), intArg(args, "k"))
		},
		"create_dynamic_tool": createDynamicToolFn(deps, registry),
		"create_sandbox":      createSandboxFn(deps.Sandboxes),
		"run_in_sandbox":      runInSandboxFn(deps.Sandboxes),
		"inspect_sandbox":     inspectSandboxFn(deps.Sandboxes),
		"cleanup_sandbox":     cleanupSandboxFn(deps.Sandboxes),
	}

	for name, entry := range manifest {
		fn, ok := fns[name]
		if !ok {
			return nil, fmt.Errorf("manifest entry %q has no implementation", name)
		}
		registry[name] = engine.Tool{
			Name:        entry.Name,
			Description: entry.Description,
			SchemaJSON:  string(entry.Schema),
			Fn:          fn,
			Origin:      engine.OriginBuiltin,
		}
	}

	if deps.Synthesizer != nil {
		cached, err := deps.Synthesizer.LoadCached()
		if err != nil {
			deps.Logger.Warn("failed to load synthesized tool cache", zap.Error(err))
		}
		for _, t := range cached {
			if _, taken := registry[t.Name]; taken {
				deps.Logger.Warn("cached tool shadows a built-in, skipping", zap.String("tool", t.Name))
				continue
			}
			registry[t.Name] = t
		}
		if len(cached) > 0 {
			deps.Logger.Info("restored synthesized tools from cache", zap.Int("count", len(cached)))
		}
	}

	return registry, nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}
