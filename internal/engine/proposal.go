package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Change is one proposed edit to the repository.
type Change struct {
	Action     string `json:"action"` // "modify" or "create"
	File       string `json:"file"`
	Search     string `json:"search,omitempty"`
	Replace    string `json:"replace"`
	Reasoning  string `json:"reasoning"`
	Confidence string `json:"confidence,omitempty"` // "high", "medium", "low"
}

// Proposal is the terminal artifact of a session: the only externally
// meaningful output. It is printed to stdout as pure JSON.
type Proposal struct {
	Analysis string   `json:"analysis"`
	Changes  []Change `json:"changes"`
}

// proposalSchema validates the terminal response before the session accepts
// it as completed.
const proposalSchema = `{
  "type": "object",
  "properties": {
    "analysis": {"type": "string"},
    "changes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "action": {"type": "string", "enum": ["modify", "create"]},
          "file": {"type": "string"},
          "search": {"type": "string"},
          "replace": {"type": "string"},
          "reasoning": {"type": "string"},
          "confidence": {"type": "string", "enum": ["high", "medium", "low"]}
        },
        "required": ["action", "file", "replace", "reasoning"],
        "additionalProperties": false
      }
    }
  },
  "required": ["analysis", "changes"],
  "additionalProperties": false
}`

// ParseProposal parses and validates a terminal response body.
func ParseProposal(content string) (Proposal, error) {
	var zero Proposal

	body := stripCodeFences(content)

	var raw any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return zero, &MalformedOutputError{Content: content, Err: err}
	}

	schemaLoader := gojsonschema.NewStringLoader(proposalSchema)
	docLoader := gojsonschema.NewGoLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return zero, &MalformedOutputError{Content: content, Err: err}
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return zero, &MalformedOutputError{
			Content: content,
			Err:     fmt.Errorf("schema violations: %s", strings.Join(msgs, "; ")),
		}
	}

	var p Proposal
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return zero, &MalformedOutputError{Content: content, Err: err}
	}
	if err := ValidateChangePaths(p); err != nil {
		return zero, &MalformedOutputError{Content: content, Err: err}
	}
	return p, nil
}

// FallbackProposal builds the empty-changes proposal emitted on any fatal
// condition, so downstream automation always receives well-formed JSON.
func FallbackProposal(reason string) Proposal {
	return Proposal{
		Analysis: reason,
		Changes:  []Change{},
	}
}

// RecoverToolArgs parses tool-call argument JSON from the model, repairing
// the common formatting mistakes (code fences, prose around the object)
// before giving up. On failure the error carries the offending text so it
// can be reported back to the model.
func RecoverToolArgs(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}

	args := make(map[string]any)
	if err := json.Unmarshal([]byte(trimmed), &args); err == nil {
		return args, nil
	}

	candidate := stripCodeFences(trimmed)
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		candidate = candidate[start : end+1]
	}
	args = make(map[string]any)
	if err := json.Unmarshal([]byte(candidate), &args); err == nil {
		return args, nil
	}

	sample := trimmed
	if len(sample) > 200 {
		sample = sample[:200]
	}
	return nil, fmt.Errorf("arguments are not valid JSON: %s", sample)
}

// stripCodeFences removes a surrounding markdown code fence, a common model
// formatting habit that would otherwise break strict JSON parsing.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
