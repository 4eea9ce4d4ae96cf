package engine

import (
	"strings"
	"testing"
)

func toolTurn(id, name, result string) []ChatMessage {
	return []ChatMessage{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: id, Name: name, Args: map[string]any{}}}},
		{Role: RoleTool, Name: id, Content: result},
	}
}

func longHistory() []ChatMessage {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: "system rules"},
		{Role: RoleUser, Content: "the error log"},
	}
	msgs = append(msgs, toolTurn("c1", "list_directory", "src/ cmd/")...)
	msgs = append(msgs, toolTurn("c2", "read_file", "package main")...)
	msgs = append(msgs, toolTurn("c3", "search_files", "3 matches")...)
	return msgs
}

func TestCompressPreservesAnchorsAndLastPair(t *testing.T) {
	msgs := longHistory()
	got := Compress(msgs, DefaultCompressorConfig())

	if len(got) >= len(msgs) {
		t.Fatalf("no reduction: %d -> %d", len(msgs), len(got))
	}

	if got[0].Role != RoleSystem || got[0].Content != "system rules" {
		t.Errorf("system anchor lost: %+v", got[0])
	}
	if got[1].Role != RoleUser || got[1].Content != "the error log" {
		t.Errorf("first user anchor lost: %+v", got[1])
	}

	// The synthetic summary names the elided interactions.
	if got[2].Role != RoleAssistant || !strings.Contains(got[2].Content, "2 earlier tool interactions") {
		t.Errorf("summary message wrong: %+v", got[2])
	}

	// The most recent tool pair survives.
	last := got[len(got)-1]
	if last.Role != RoleTool || last.Name != "c3" {
		t.Errorf("last tool result lost: %+v", last)
	}
	if got[len(got)-2].Role != RoleAssistant || got[len(got)-2].ToolCalls[0].ID != "c3" {
		t.Errorf("last tool call lost: %+v", got[len(got)-2])
	}
}

func TestCompressIdempotent(t *testing.T) {
	once := Compress(longHistory(), DefaultCompressorConfig())
	twice := Compress(once, DefaultCompressorConfig())

	if len(twice) != len(once) {
		t.Fatalf("second pass changed length: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Content != twice[i].Content || once[i].Role != twice[i].Role {
			t.Errorf("message %d changed on second pass", i)
		}
	}
}

func TestCompressShortHistoryPassthrough(t *testing.T) {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: "s"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleAssistant, Content: "a"},
	}
	if got := Compress(msgs, DefaultCompressorConfig()); len(got) != 3 {
		t.Errorf("short history should pass through, got %d messages", len(got))
	}
}

func TestTruncateToolContent(t *testing.T) {
	cfg := DefaultCompressorConfig()

	t.Run("short content untouched", func(t *testing.T) {
		if got := TruncateToolContent("short", cfg); got != "short" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("keeps signal lines and records reduction", func(t *testing.T) {
		var lines []string
		lines = append(lines, "error: undefined symbol frobnicate")
		lines = append(lines, "import { widget } from './widget'")
		for i := 0; i < 60; i++ {
			lines = append(lines, strings.Repeat("filler text without signal ", 3))
		}
		content := strings.Join(lines, "\n")

		got := TruncateToolContent(content, cfg)
		if len(got) >= len(content) {
			t.Fatal("no reduction")
		}
		if !strings.Contains(got, "undefined symbol frobnicate") {
			t.Error("error line dropped")
		}
		if !strings.Contains(got, "import { widget }") {
			t.Error("import line dropped")
		}
		if !strings.Contains(got, "[TRUNCATED:") || !strings.Contains(got, "for token efficiency]") {
			t.Errorf("missing truncation marker: %q", got)
		}
	})

	t.Run("no signal lines falls back to head", func(t *testing.T) {
		content := strings.Repeat("plain filler line\n", 100)
		got := TruncateToolContent(content, cfg)
		if !strings.HasPrefix(got, "plain filler line") {
			t.Errorf("expected head fallback, got %q", got[:40])
		}
		if !strings.Contains(got, "[TRUNCATED:") {
			t.Error("missing truncation marker")
		}
	})
}

func TestSanitizeHistoryDropsOrphans(t *testing.T) {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: "s"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleTool, Name: "ghost", Content: "orphaned result"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "read_file"}}},
		{Role: RoleTool, Name: "c1", Content: "answered result"},
		{Role: RoleTool, Name: "c1", Content: "duplicate answer"},
	}

	got := SanitizeHistory(msgs)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for _, m := range got {
		if m.Role == RoleTool && m.Name == "ghost" {
			t.Error("orphaned tool result survived")
		}
		if m.Content == "duplicate answer" {
			t.Error("duplicate tool result survived")
		}
	}
}

func TestSanitizeHistoryKeepsNameKeyedResults(t *testing.T) {
	// Some providers omit tool call IDs; the result is then keyed by tool
	// name and must still pair with its call.
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: "s"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "", Name: "read_file"}}},
		{Role: RoleTool, Name: "read_file", Content: "package main"},
	}

	got := SanitizeHistory(msgs)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4: ID-less call's result was dropped", len(got))
	}
	last := got[len(got)-1]
	if last.Role != RoleTool || last.Content != "package main" {
		t.Errorf("tool result lost: %+v", last)
	}
}

func TestBuildDigestHistory(t *testing.T) {
	msgs := longHistory()
	got := BuildDigestHistory(msgs, "pkg/foo.go: relevant snippet", 3)

	if got[0].Role != RoleSystem || got[1].Role != RoleUser {
		t.Fatal("anchors lost")
	}
	if got[2].Role != RoleUser || !strings.Contains(got[2].Content, "relevant snippet") {
		t.Errorf("digest message wrong: %+v", got[2])
	}
	// A keepTail of 3 would start at a tool result; the orphan must be
	// stripped so the tail opens with the assistant turn.
	tail := got[3:]
	if tail[0].Role == RoleTool {
		t.Error("digest tail starts with an orphaned tool result")
	}
}

func TestHarvestKeywords(t *testing.T) {
	msgs := []ChatMessage{
		{Role: RoleAssistant, Content: "the error is in parseConfig within backend/src/loader.ts"},
		{Role: RoleTool, Content: "function parseConfig not found"},
	}

	terms := HarvestKeywords(msgs, 6, 8)
	if len(terms) == 0 {
		t.Fatal("no terms harvested")
	}

	joined := strings.Join(terms, " ")
	if !strings.Contains(joined, "parseConfig") {
		t.Errorf("identifier missing from %v", terms)
	}
	if !strings.Contains(joined, "backend/src/loader.ts") {
		t.Errorf("path missing from %v", terms)
	}
	for _, term := range terms {
		if strings.ToLower(term) == "error" || strings.ToLower(term) == "function" {
			t.Errorf("stopword %q harvested", term)
		}
	}

	seen := make(map[string]bool)
	for _, term := range terms {
		lw := strings.ToLower(term)
		if seen[lw] {
			t.Errorf("duplicate term %q", term)
		}
		seen[lw] = true
	}
}
