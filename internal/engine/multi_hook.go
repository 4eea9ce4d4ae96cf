package engine

import (
	"context"
	"time"
)

// Hooks fans out to every registered hook in order.
type Hooks []Hook

func (hs Hooks) OnIterationStart(ctx context.Context, s *Session) {
	for _, h := range hs {
		h.OnIterationStart(ctx, s)
	}
}

func (hs Hooks) OnBeforeLLM(ctx context.Context, s *Session, msgs []ChatMessage, schemas []ToolSchema) {
	for _, h := range hs {
		h.OnBeforeLLM(ctx, s, msgs, schemas)
	}
}

func (hs Hooks) OnAfterLLM(ctx context.Context, s *Session, resp LLMResponse) {
	for _, h := range hs {
		h.OnAfterLLM(ctx, s, resp)
	}
}

func (hs Hooks) OnToolCall(ctx context.Context, s *Session, call ToolCall) {
	for _, h := range hs {
		h.OnToolCall(ctx, s, call)
	}
}

func (hs Hooks) OnToolResult(ctx context.Context, s *Session, call ToolCall, result string, err error) {
	for _, h := range hs {
		h.OnToolResult(ctx, s, call, result, err)
	}
}

func (hs Hooks) OnCompress(ctx context.Context, s *Session, before, after int) {
	for _, h := range hs {
		h.OnCompress(ctx, s, before, after)
	}
}

func (hs Hooks) OnStateChange(ctx context.Context, s *Session, from, to SessionState) {
	for _, h := range hs {
		h.OnStateChange(ctx, s, from, to)
	}
}

func (hs Hooks) OnRetryAttempt(ctx context.Context, s *Session, attempt int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, s, attempt, delay, err)
	}
}

func (hs Hooks) OnDone(ctx context.Context, s *Session) {
	for _, h := range hs {
		h.OnDone(ctx, s)
	}
}
