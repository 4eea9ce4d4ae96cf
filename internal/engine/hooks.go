package engine

import (
	"context"
	"time"
)

// Hook observes the loop. All diagnostics flow through hooks so the primary
// output channel stays pure JSON.
type Hook interface {
	OnIterationStart(ctx context.Context, s *Session)
	OnBeforeLLM(ctx context.Context, s *Session, messages []ChatMessage, toolSchemas []ToolSchema)
	OnAfterLLM(ctx context.Context, s *Session, resp LLMResponse)
	OnToolCall(ctx context.Context, s *Session, call ToolCall)
	OnToolResult(ctx context.Context, s *Session, call ToolCall, result string, err error)
	OnCompress(ctx context.Context, s *Session, before, after int)
	OnStateChange(ctx context.Context, s *Session, from, to SessionState)
	OnRetryAttempt(ctx context.Context, s *Session, attempt int, delay time.Duration, err error)
	OnDone(ctx context.Context, s *Session)
}

// NopHook lets you implement only the hooks you need.
type NopHook struct{}

func (NopHook) OnIterationStart(context.Context, *Session)                          {}
func (NopHook) OnBeforeLLM(context.Context, *Session, []ChatMessage, []ToolSchema)  {}
func (NopHook) OnAfterLLM(context.Context, *Session, LLMResponse)                   {}
func (NopHook) OnToolCall(context.Context, *Session, ToolCall)                      {}
func (NopHook) OnToolResult(context.Context, *Session, ToolCall, string, error)     {}
func (NopHook) OnCompress(context.Context, *Session, int, int)                      {}
func (NopHook) OnStateChange(context.Context, *Session, SessionState, SessionState) {}
func (NopHook) OnRetryAttempt(context.Context, *Session, int, time.Duration, error) {}
func (NopHook) OnDone(context.Context, *Session)                                    {}
