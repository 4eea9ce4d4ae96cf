package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// CompressorConfig bounds what the compressor keeps.
type CompressorConfig struct {
	MaxToolChars int // tool-result content above this is truncated
	ScanLines    int // lines of a long tool result considered for keeping
	KeepLines    int // max high-signal lines kept
	MinLength    int // histories at or below this length pass through
}

// DefaultCompressorConfig returns the default compression bounds.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		MaxToolChars: 1000,
		ScanLines:    20,
		KeepLines:    10,
		MinLength:    5,
	}
}

// signalTokens mark lines worth keeping when a tool result is truncated.
var signalTokens = []string{
	"error", "failed", "test", "import", "export",
	"function", "class", "interface",
}

// Compress reduces a conversation history while preserving its anchors.
//
// The system message and the first user message are always retained
// verbatim. Only the most recent tool-invocation/result pair survives in
// full (with long tool content truncated); everything between the anchors
// and that pair is replaced by one synthetic summary noting how many tool
// interactions were elided. Reapplying Compress to an already-compressed
// history is a no-op.
func Compress(msgs []ChatMessage, cfg CompressorConfig) []ChatMessage {
	if len(msgs) <= cfg.MinLength || len(msgs) < 3 {
		return msgs
	}

	anchors := msgs[:2]

	// Locate the most recent assistant message that requested tools, plus
	// the tool results that answer it.
	pairStart := -1
	for i := len(msgs) - 1; i >= 2; i-- {
		if msgs[i].Role == RoleAssistant && len(msgs[i].ToolCalls) > 0 {
			pairStart = i
			break
		}
	}
	if pairStart < 0 {
		return msgs
	}
	tail := msgs[pairStart:]

	// Count elided tool interactions in the middle. Zero means the history
	// is already in compressed form.
	elided := 0
	for _, m := range msgs[2:pairStart] {
		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			elided++
		}
	}
	if elided == 0 {
		return msgs
	}

	result := make([]ChatMessage, 0, len(anchors)+1+len(tail))
	result = append(result, anchors...)
	result = append(result, ChatMessage{
		Role: RoleAssistant,
		Content: fmt.Sprintf(
			"[Context compressed: %d earlier tool interactions elided. Exploration so far informed the current focus.]",
			elided),
	})
	for _, m := range tail {
		if m.Role == RoleTool {
			m.Content = TruncateToolContent(m.Content, cfg)
		}
		result = append(result, m)
	}
	return result
}

// TruncateToolContent shrinks a long tool result, keeping lines that carry
// high-signal tokens and recording the reduction.
func TruncateToolContent(content string, cfg CompressorConfig) string {
	if len(content) <= cfg.MaxToolChars {
		return content
	}

	lines := strings.Split(content, "\n")
	scan := lines
	if len(scan) > cfg.ScanLines {
		scan = scan[:cfg.ScanLines]
	}

	var kept []string
	for _, line := range scan {
		lower := strings.ToLower(line)
		for _, tok := range signalTokens {
			if strings.Contains(lower, tok) {
				kept = append(kept, line)
				break
			}
		}
		if len(kept) >= cfg.KeepLines {
			break
		}
	}
	if len(kept) == 0 {
		n := 5
		if len(scan) < n {
			n = len(scan)
		}
		kept = scan[:n]
	}

	reduced := strings.Join(kept, "\n")
	return reduced + fmt.Sprintf("\n[TRUNCATED: %d chars -> %d chars for token efficiency]",
		len(content), len(reduced))
}

var keywordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_./-]{3,}`)

// keywordStop filters words too generic to query the index with.
var keywordStop = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"file": true, "line": true, "true": true, "false": true, "null": true,
	"error": true, "string": true, "return": true, "function": true,
	"const": true, "tool_calls": true, "content": true,
}

// HarvestKeywords extracts identifier-like terms from the tail of a history,
// for use as a semantic-search query.
func HarvestKeywords(msgs []ChatMessage, lastN, max int) []string {
	start := len(msgs) - lastN
	if start < 0 {
		start = 0
	}

	seen := make(map[string]bool)
	var terms []string
	for _, m := range msgs[start:] {
		for _, w := range keywordPattern.FindAllString(m.Content, -1) {
			lw := strings.ToLower(w)
			if keywordStop[lw] || seen[lw] {
				continue
			}
			seen[lw] = true
			terms = append(terms, w)
			if len(terms) >= max {
				return terms
			}
		}
	}
	return terms
}

// BuildDigestHistory substitutes a semantic relevance digest for the general
// history: anchors, one digest message, and the most recent turns.
func BuildDigestHistory(msgs []ChatMessage, digest string, keepTail int) []ChatMessage {
	if len(msgs) < 3 {
		return msgs
	}

	anchors := msgs[:2]
	tail := msgs[2:]
	if len(tail) > keepTail {
		tail = tail[len(tail)-keepTail:]
	}
	// The tail must not start with an orphaned tool result.
	for len(tail) > 0 && tail[0].Role == RoleTool {
		tail = tail[1:]
	}

	result := make([]ChatMessage, 0, len(anchors)+1+len(tail))
	result = append(result, anchors...)
	result = append(result, ChatMessage{
		Role:    RoleUser,
		Content: "Relevant code context (from semantic search over the repository):\n" + digest,
	})
	result = append(result, tail...)
	return result
}

// SanitizeHistory drops orphaned tool-result messages: every tool result
// must answer a tool call from the immediately preceding assistant message,
// matched by call ID (or by tool name when the provider sent no ID).
func SanitizeHistory(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	pending := make(map[string]bool)

	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			pending = make(map[string]bool)
			for _, tc := range m.ToolCalls {
				// Results for ID-less calls are keyed by tool name, matching
				// the fallback used when the result was appended.
				id := tc.ID
				if id == "" {
					id = tc.Name
				}
				pending[id] = true
			}
			out = append(out, m)
		case RoleTool:
			if pending[m.Name] {
				delete(pending, m.Name)
				out = append(out, m)
			}
			// Orphaned result: dropped.
		default:
			pending = make(map[string]bool)
			out = append(out, m)
		}
	}
	return out
}
