package engine

import (
	"errors"
	"strings"
	"testing"
)

const validProposalJSON = `{
  "analysis": "the import path is stale after the package rename",
  "changes": [
    {
      "action": "modify",
      "file": "src/app.ts",
      "search": "import { old } from './old'",
      "replace": "import { renamed } from './renamed'",
      "reasoning": "old module no longer exists",
      "confidence": "high"
    }
  ]
}`

func TestParseProposalValid(t *testing.T) {
	p, err := ParseProposal(validProposalJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Analysis == "" {
		t.Error("analysis lost")
	}
	if len(p.Changes) != 1 || p.Changes[0].File != "src/app.ts" {
		t.Errorf("changes = %+v", p.Changes)
	}
}

func TestParseProposalFenced(t *testing.T) {
	fenced := "```json\n" + validProposalJSON + "\n```"
	p, err := ParseProposal(fenced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Changes) != 1 {
		t.Errorf("changes = %+v", p.Changes)
	}
}

func TestParseProposalEmptyChanges(t *testing.T) {
	p, err := ParseProposal(`{"analysis": "could not determine the cause", "changes": []}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Changes) != 0 {
		t.Errorf("changes = %+v, want empty", p.Changes)
	}
}

func TestParseProposalRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not json",
			content: "I think the problem is in the loader.",
		},
		{
			name:    "missing required field",
			content: `{"analysis": "x"}`,
		},
		{
			name:    "unknown top-level key",
			content: `{"analysis": "x", "changes": [], "notes": "extra"}`,
		},
		{
			name:    "unknown change key",
			content: `{"analysis": "x", "changes": [{"action": "modify", "file": "a.go", "replace": "y", "reasoning": "z", "severity": "high"}]}`,
		},
		{
			name:    "bad action enum",
			content: `{"analysis": "x", "changes": [{"action": "delete", "file": "a.go", "replace": "y", "reasoning": "z"}]}`,
		},
		{
			name:    "wrong type for changes",
			content: `{"analysis": "x", "changes": "none"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProposal(tt.content)
			var malformed *MalformedOutputError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedOutputError, got %v", err)
			}
			if malformed.Content != tt.content {
				t.Error("original content not preserved for the corrective re-prompt")
			}
		})
	}
}

func TestParseProposalGuardsPaths(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{name: "parent traversal", file: "../outside/secrets.go"},
		{name: "absolute path", file: "/etc/passwd"},
		{name: "env file", file: ".env"},
		{name: "env variant", file: ".env.production"},
		{name: "nested env variant", file: "backend/.env.local"},
		{name: "git internals", file: ".git/config"},
		{name: "lockfile", file: "package-lock.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `{"analysis": "x", "changes": [{"action": "modify", "file": "` + tt.file + `", "replace": "y", "reasoning": "z"}]}`
			_, err := ParseProposal(content)
			var malformed *MalformedOutputError
			if !errors.As(err, &malformed) {
				t.Fatalf("file %q should be rejected, got %v", tt.file, err)
			}
		})
	}
}

func TestFallbackProposal(t *testing.T) {
	p := FallbackProposal("session could not converge")
	if p.Analysis != "session could not converge" {
		t.Errorf("analysis = %q", p.Analysis)
	}
	if p.Changes == nil {
		t.Error("changes must be an empty slice, not nil, so it serializes as []")
	}
	if len(p.Changes) != 0 {
		t.Errorf("changes = %+v, want empty", p.Changes)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain passthrough", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "bare fence", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "surrounding whitespace", in: "  {\"a\": 1}\n", want: `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateChangePaths(t *testing.T) {
	ok := Proposal{Analysis: "x", Changes: []Change{
		{Action: "modify", File: "internal/server/handler.go", Replace: "y", Reasoning: "z"},
		{Action: "create", File: "docs/notes.md", Replace: "y", Reasoning: "z"},
	}}
	if err := ValidateChangePaths(ok); err != nil {
		t.Errorf("unexpected rejection: %v", err)
	}

	bad := Proposal{Analysis: "x", Changes: []Change{
		{Action: "modify", File: "config/secrets.yaml", Replace: "y", Reasoning: "z"},
	}}
	if err := ValidateChangePaths(bad); err == nil {
		t.Error("secrets path should be rejected")
	}

	if !strings.Contains(ValidateChangePaths(bad).Error(), "config/secrets") {
		t.Error("error should name the offending path")
	}

	nested := Proposal{Analysis: "x", Changes: []Change{
		{Action: "modify", File: "services/api/config/secrets.yaml", Replace: "y", Reasoning: "z"},
	}}
	if err := ValidateChangePaths(nested); err == nil {
		t.Error("nested secrets path should be rejected")
	}
}

func TestRecoverToolArgs(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    map[string]any
		wantErr bool
	}{
		{
			name: "strict json",
			in:   `{"path": "src/app.ts"}`,
			want: map[string]any{"path": "src/app.ts"},
		},
		{
			name: "empty arguments",
			in:   "",
			want: map[string]any{},
		},
		{
			name: "fenced json",
			in:   "```json\n{\"path\": \"src/app.ts\"}\n```",
			want: map[string]any{"path": "src/app.ts"},
		},
		{
			name: "prose around the object",
			in:   `Here are the arguments: {"pattern": "loadConfig"} as requested.`,
			want: map[string]any{"pattern": "loadConfig"},
		},
		{
			name:    "truncated json",
			in:      `{"path": "src/ap`,
			wantErr: true,
		},
		{
			name:    "no object at all",
			in:      "read the loader file please",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecoverToolArgs(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected failure, got %v", got)
				}
				if !strings.Contains(err.Error(), "not valid JSON") {
					t.Errorf("err = %v, should describe the malformed input", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
