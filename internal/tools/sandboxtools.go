package tools

import (
	"context"
	"encoding/json"

	"github.com/buildmedic/buildmedic/internal/engine"
	"github.com/buildmedic/buildmedic/internal/sandbox"
)

func createSandboxFn(m *sandbox.Manager) engine.ToolFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		sb, err := m.Create(
			stringArg(args, "name"),
			stringArg(args, "description"),
			sandbox.Kind(stringArg(args, "kind")),
		)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(map[string]any{
			"status": "created",
			"name":   sb.Name,
			"kind":   sb.Kind,
			"path":   sb.Path,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func runInSandboxFn(m *sandbox.Manager) engine.ToolFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		op, err := m.Run(ctx,
			stringArg(args, "name"),
			sandbox.OpKind(stringArg(args, "kind")),
			stringArg(args, "payload"),
			stringArg(args, "description"),
		)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(map[string]any{
			"operation_id": op.ID,
			"status":       op.Status,
			"result":       json.RawMessage(op.Result),
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func inspectSandboxFn(m *sandbox.Manager) engine.ToolFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		return m.Inspect(stringArg(args, "name"), stringArg(args, "scope"))
	}
}

func cleanupSandboxFn(m *sandbox.Manager) engine.ToolFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		removed, warning, err := m.Cleanup(stringArg(args, "name"), boolArg(args, "force"))
		if err != nil {
			return "", err
		}
		payload := map[string]any{"removed": removed}
		if warning != "" {
			payload["warning"] = warning
		}
		out, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}
