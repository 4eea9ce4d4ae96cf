package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// ToolOrigin records where a tool definition came from.
type ToolOrigin string

const (
	OriginBuiltin     ToolOrigin = "built-in"
	OriginSynthesized ToolOrigin = "synthesized"
)

type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
	Origin      ToolOrigin
	// Set for synthesized tools only.
	SourceHash string
	CreatedAt  time.Time
}

// ValidateArgs validates the provided arguments against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errorMsgs []string
		for _, err := range result.Errors() {
			errorMsgs = append(errorMsgs, err.String())
		}
		return &ToolValidationError{
			ToolName: t.Name,
			Errors:   errorMsgs,
		}
	}

	return nil
}

// ToolRegistry is the union of built-in and synthesized tools. The same map
// is shared with the create_dynamic_tool implementation so a tool synthesized
// mid-session is visible to the very next turn.
type ToolRegistry map[string]Tool

// Schemas returns the schema list supplied to the inference service each turn.
func (r ToolRegistry) Schemas() []ToolSchema {
	s := make([]ToolSchema, 0, len(r))
	for _, t := range r {
		s = append(s, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	return s
}

// Names returns the registered tool names, for error messages.
func (r ToolRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}

// Synthesized returns only the dynamically created tools.
func (r ToolRegistry) Synthesized() []Tool {
	var out []Tool
	for _, t := range r {
		if t.Origin == OriginSynthesized {
			out = append(out, t)
		}
	}
	return out
}
