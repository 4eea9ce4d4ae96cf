package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// synthesisDirective is injected once the exploration iterations run out,
// regardless of model cooperativeness.
const synthesisDirective = `You have explored enough. Do not call any more tools. ` +
	`Respond NOW with your final answer as a single JSON object: ` +
	`{"analysis": "...", "changes": [{"action": "modify|create", "file": "...", "search": "...", "replace": "...", "reasoning": "...", "confidence": "high|medium|low"}]}. ` +
	`Base the changes on what you have already learned.`

// correctiveReprompt is the single recovery prompt allowed after a terminal
// response that failed to parse.
const correctiveReprompt = `Your previous response was not valid JSON. ` +
	`Reply again with ONLY a single valid JSON object of the form ` +
	`{"analysis": string, "changes": [...]} and nothing else.`

// Loop runs conversation sessions against the inference service.
type Loop struct {
	LLM         LLMClient
	Registry    ToolRegistry
	Hooks       Hooks
	Config      LoopConfig
	Compressor  CompressorConfig
	RetryPolicy RetryPolicy
}

// NewLoop builds a loop with default thresholds.
func NewLoop(llm LLMClient, reg ToolRegistry, hooks Hooks) *Loop {
	return &Loop{
		LLM:         llm,
		Registry:    reg,
		Hooks:       hooks,
		Config:      DefaultLoopConfig(),
		Compressor:  DefaultCompressorConfig(),
		RetryPolicy: DefaultRetryPolicy(),
	}
}

// Run drives one session from seed to terminal state. It always returns a
// well-formed Proposal: on any fatal condition the proposal carries an
// explanatory analysis and an empty change list alongside the error.
func (l *Loop) Run(ctx context.Context, s *Session, systemPrompt, seedText string) (Proposal, error) {
	l.transition(ctx, s, StateExploring)

	s.Append(ChatMessage{Role: RoleSystem, Content: systemPrompt})
	s.Append(ChatMessage{Role: RoleUser, Content: seedText})

	directiveSent := false
	escalated := false
	reprompted := false

	for s.Iteration < s.MaxIterations {
		select {
		case <-ctx.Done():
			return l.fail(ctx, s, fmt.Errorf("session cancelled: %w", ctx.Err()))
		default:
		}

		s.Iteration++
		l.Hooks.OnIterationStart(ctx, s)

		if s.Iteration > l.Config.CompressAfter && len(s.History) > l.Config.CompressMinLen {
			before := len(s.History)
			s.History = Compress(s.History, l.Compressor)
			if len(s.History) != before {
				l.Hooks.OnCompress(ctx, s, before, len(s.History))
			}
		}

		if !directiveSent && s.Iteration > l.Config.SynthesizeAfter {
			l.transition(ctx, s, StateSynthesizing)
			s.Append(ChatMessage{Role: RoleUser, Content: synthesisDirective})
			directiveSent = true
		}

		if !escalated && s.Iteration > l.Config.EscalateAfter {
			if digest := l.semanticDigest(ctx, s); digest != "" {
				before := len(s.History)
				s.History = BuildDigestHistory(s.History, digest, 4)
				l.Hooks.OnCompress(ctx, s, before, len(s.History))
			}
			escalated = true
		}

		msgs := SanitizeHistory(append([]ChatMessage(nil), s.History...))
		schemas := l.Registry.Schemas()
		l.Hooks.OnBeforeLLM(ctx, s, msgs, schemas)

		resp, err := RetryLLMCall(ctx, l.RetryPolicy, l.LLM, s.Model, msgs, schemas, ChatOptions{
			Temperature:     l.Config.Temperature,
			MaxOutputTokens: l.Config.MaxOutputTokens,
		}, func(attempt int, delay time.Duration, retryErr error) {
			l.Hooks.OnRetryAttempt(ctx, s, attempt, delay, retryErr)
		})
		if err != nil {
			return l.fail(ctx, s, fmt.Errorf("inference call failed: %w", err))
		}

		l.Hooks.OnAfterLLM(ctx, s, resp)
		s.Totals.Prompt += resp.Usage.Prompt
		s.Totals.Completion += resp.Usage.Completion
		s.Totals.Total += resp.Usage.Total

		assistant := resp.Assistant
		assistant.ToolCalls = resp.ToolCalls
		s.Append(assistant)

		if len(resp.ToolCalls) > 0 {
			// Tool turns reset the malformed-output strike.
			reprompted = false
			l.executeToolCalls(ctx, s, resp.ToolCalls)
			continue
		}

		proposal, parseErr := ParseProposal(resp.Assistant.Content)
		if parseErr == nil {
			l.transition(ctx, s, StateCompleted)
			l.Hooks.OnDone(ctx, s)
			return proposal, nil
		}

		if !reprompted {
			reprompted = true
			s.Append(ChatMessage{Role: RoleUser, Content: correctiveReprompt})
			continue
		}

		return l.fail(ctx, s, parseErr)
	}

	return l.fail(ctx, s, fmt.Errorf("no proposal after %d iterations", s.MaxIterations))
}

// executeToolCalls dispatches the requested tools strictly in request order.
// Sandbox and filesystem operations are not commutative, so ordering must be
// reproducible. Failures become tool-result content; they never end the
// session.
func (l *Loop) executeToolCalls(ctx context.Context, s *Session, calls []ToolCall) {
	for _, call := range calls {
		l.Hooks.OnToolCall(ctx, s, call)

		content, err := l.executeTool(ctx, call)
		if err != nil {
			content = "ERROR: " + err.Error()
		}

		id := call.ID
		if id == "" {
			id = call.Name
		}
		s.Append(ChatMessage{Role: RoleTool, Name: id, Content: content})
		l.Hooks.OnToolResult(ctx, s, call, content, err)
	}
}

// executeTool runs one tool call. An unknown tool name yields a structured
// payload the model can recover from within the same conversation.
func (l *Loop) executeTool(ctx context.Context, call ToolCall) (string, error) {
	t, ok := l.Registry[call.Name]
	if !ok {
		payload, _ := json.Marshal(map[string]any{
			"error":           "unknown_tool",
			"requested":       call.Name,
			"available_tools": l.Registry.Names(),
			"hint":            "use one of the available tools, or create_dynamic_tool to synthesize a new one",
		})
		return string(payload), nil
	}

	if call.ArgsError != "" {
		return "", fmt.Errorf("arguments for tool %s were malformed: %s", call.Name, call.ArgsError)
	}

	if err := t.ValidateArgs(call.Args); err != nil {
		return "", err
	}

	result, err := t.Fn(ctx, call.Args)
	if err != nil {
		return "", fmt.Errorf("execution failed for tool %s: %w", call.Name, err)
	}
	return result, nil
}

// semanticDigest asks the semantic-search built-in for a short relevance
// digest keyed on terms harvested from recent messages. Returns "" when the
// index is unavailable or nothing useful comes back.
func (l *Loop) semanticDigest(ctx context.Context, s *Session) string {
	search, ok := l.Registry["semantic_search"]
	if !ok {
		return ""
	}

	terms := HarvestKeywords(s.History, 6, 8)
	if len(terms) == 0 {
		return ""
	}

	result, err := search.Fn(ctx, map[string]any{
		"query": strings.Join(terms, " "),
		"k":     float64(5),
	})
	if err != nil || strings.Contains(result, `"unavailable"`) {
		return ""
	}
	return result
}

// fail moves the session to its failed state and wraps the reason in the
// fallback proposal so the caller can still emit valid JSON.
func (l *Loop) fail(ctx context.Context, s *Session, err error) (Proposal, error) {
	l.transition(ctx, s, StateFailed)
	l.Hooks.OnDone(ctx, s)
	return FallbackProposal(err.Error()), err
}

func (l *Loop) transition(ctx context.Context, s *Session, to SessionState) {
	if s.State == to {
		return
	}
	from := s.State
	s.State = to
	l.Hooks.OnStateChange(ctx, s, from, to)
}
