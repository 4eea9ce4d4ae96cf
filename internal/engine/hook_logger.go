package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggerHook logs loop progress to the diagnostic channel (stderr).
type LoggerHook struct{ L *zap.Logger }

func (h LoggerHook) OnIterationStart(_ context.Context, s *Session) {
	h.L.Debug("iteration start",
		zap.Int("iteration", s.Iteration),
		zap.String("state", string(s.State)))
}

func (h LoggerHook) OnBeforeLLM(_ context.Context, s *Session, msgs []ChatMessage, toolSchemas []ToolSchema) {
	h.L.Debug("calling inference service",
		zap.Int("iteration", s.Iteration),
		zap.Int("messages", len(msgs)),
		zap.Int("history", len(s.History)),
		zap.Int("tools", len(toolSchemas)))
}

func (h LoggerHook) OnAfterLLM(_ context.Context, s *Session, r LLMResponse) {
	h.L.Debug("inference response",
		zap.String("finish", r.FinishReason),
		zap.Int("tool_calls", len(r.ToolCalls)),
		zap.Int("prompt_tokens", r.Usage.Prompt),
		zap.Int("completion_tokens", r.Usage.Completion),
		zap.Int("cumulative_tokens", s.Totals.Total))
}

func (h LoggerHook) OnToolCall(_ context.Context, _ *Session, c ToolCall) {
	h.L.Info("tool call", zap.String("tool", c.Name), zap.Any("args", c.Args))
}

func (h LoggerHook) OnToolResult(_ context.Context, _ *Session, c ToolCall, result string, err error) {
	if err != nil {
		h.L.Warn("tool error", zap.String("tool", c.Name), zap.Error(err))
		return
	}
	preview := result
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	h.L.Debug("tool result", zap.String("tool", c.Name), zap.String("preview", preview))
}

func (h LoggerHook) OnCompress(_ context.Context, s *Session, before, after int) {
	h.L.Info("history compressed",
		zap.Int("iteration", s.Iteration),
		zap.Int("before", before),
		zap.Int("after", after))
}

func (h LoggerHook) OnStateChange(_ context.Context, s *Session, from, to SessionState) {
	h.L.Info("session state",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("iteration", s.Iteration))
}

func (h LoggerHook) OnRetryAttempt(_ context.Context, s *Session, attempt int, delay time.Duration, err error) {
	s.Retries++
	h.L.Warn("retrying inference call",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
}

func (h LoggerHook) OnDone(_ context.Context, s *Session) {
	h.L.Info("session done",
		zap.String("state", string(s.State)),
		zap.Int("iterations", s.Iteration),
		zap.Int("tokens", s.Totals.Total))
}
