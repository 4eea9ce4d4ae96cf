package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/buildmedic/buildmedic/internal/engine"
	"go.uber.org/zap"
)

// createDynamicToolFn returns the create_dynamic_tool implementation bound to
// the shared registry map. Synthesis of identical source is a cache hit and
// does not recompile; a name collision with a built-in is rejected.
func createDynamicToolFn(deps Deps, registry engine.ToolRegistry) engine.ToolFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		name := stringArg(args, "name")
		source := stringArg(args, "source")
		description := stringArg(args, "description")

		if deps.Synthesizer == nil {
			return "", fmt.Errorf("tool synthesis is not available")
		}
		if existing, taken := registry[name]; taken && existing.Origin == engine.OriginBuiltin {
			return "", fmt.Errorf("tool name %q is reserved by a built-in tool", name)
		}

		tool, cached, err := deps.Synthesizer.Synthesize(name, source, description)
		if err != nil {
			return "", fmt.Errorf("failed to synthesize tool %q: %w", name, err)
		}

		registry[name] = tool
		deps.Logger.Info("dynamic tool registered",
			zap.String("tool", name),
			zap.Bool("cached", cached),
			zap.String("hash", tool.SourceHash))

		out, err := json.Marshal(map[string]any{
			"status":      "registered",
			"name":        name,
			"cached":      cached,
			"source_hash": tool.SourceHash,
			"schema":      json.RawMessage(tool.SchemaJSON),
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}
