// Package engine drives the conversation between the repair loop and the
// inference service.
package engine

import "github.com/google/uuid"

// SessionState is the termination state of a conversation session.
type SessionState string

const (
	StatePending      SessionState = "pending"
	StateExploring    SessionState = "exploring"
	StateSynthesizing SessionState = "synthesizing"
	StateCompleted    SessionState = "completed"
	StateFailed       SessionState = "failed"
)

// Terminal reports whether the session has finished.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Session is the conversation state, mutated only by the loop that owns it.
// History order is meaningful: it is the literal conversation.
type Session struct {
	ID            string
	History       []ChatMessage
	Iteration     int
	State         SessionState
	Model         string
	MaxIterations int
	Retries       int   // retry attempts, tracked separately from iterations
	Totals        Usage // accumulated token usage across all calls
}

// NewSession creates a pending session for the given model.
func NewSession(model string, maxIterations int) *Session {
	return &Session{
		ID:            uuid.NewString(),
		State:         StatePending,
		Model:         model,
		MaxIterations: maxIterations,
	}
}

func (s *Session) Append(msg ChatMessage) { s.History = append(s.History, msg) }
