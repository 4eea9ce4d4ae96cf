package engine

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FaultKind is the error taxonomy surfaced by the session.
type FaultKind string

const (
	FaultTransport       FaultKind = "transport"
	FaultRateLimited     FaultKind = "rate_limited"
	FaultMalformedOutput FaultKind = "malformed_output"
	FaultToolExecution   FaultKind = "tool_execution"
	FaultSandbox         FaultKind = "sandbox"
)

// EngineError wraps errors with classification metadata.
type EngineError struct {
	Err        error
	Kind       FaultKind
	HTTPStatus int    // HTTP status code if applicable
	RetryAfter string // Retry-After header value if present
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("engine error: %s", e.Kind)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether the error is a retryable rate-limit fault.
func IsRateLimited(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind == FaultRateLimited
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// WrapLLMError wraps an inference-service error with classification metadata.
func WrapLLMError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}

	kind := FaultTransport
	if httpStatus == http.StatusTooManyRequests || IsRateLimited(err) {
		kind = FaultRateLimited
	}

	return &EngineError{
		Err:        err,
		Kind:       kind,
		HTTPStatus: httpStatus,
		RetryAfter: retryAfter,
	}
}

// rateLimitHint matches wait suggestions like "try again in 630ms" or
// "try again in 2s" inside rate-limit error payloads.
var rateLimitHint = regexp.MustCompile(`try again in (\d+(?:\.\d+)?)\s*(ms|s)`)

// ParseRateLimitHint extracts a suggested wait duration from a rate-limit
// error message. Returns 0 if no hint is present.
func ParseRateLimitHint(msg string) time.Duration {
	m := rateLimitHint.FindStringSubmatch(strings.ToLower(msg))
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if m[2] == "ms" {
		value /= 1000
	}
	return time.Duration(value * float64(time.Second))
}

// ExtractRetryAfter extracts the wait before the next attempt from an error,
// preferring an explicit Retry-After header, then an in-band textual hint.
// Returns 0 if neither is found.
func ExtractRetryAfter(err error) time.Duration {
	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.RetryAfter != "" {
		// Try parsing as seconds (integer)
		var seconds int
		if _, scanErr := fmt.Sscanf(engineErr.RetryAfter, "%d", &seconds); scanErr == nil {
			return time.Duration(seconds) * time.Second
		}
		// Try parsing as HTTP date (RFC 1123)
		if t, parseErr := time.Parse(time.RFC1123, engineErr.RetryAfter); parseErr == nil {
			now := time.Now()
			if t.After(now) {
				return t.Sub(now)
			}
		}
	}

	return ParseRateLimitHint(err.Error())
}

// RetryExhaustedError indicates that all retry attempts have been exhausted.
// The session treats it as a fatal transport fault.
type RetryExhaustedError struct {
	Err      error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetryExhausted checks if an error is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var retryExhausted *RetryExhaustedError
	return errors.As(err, &retryExhausted)
}

// ToolValidationError indicates that tool arguments failed JSON schema validation.
type ToolValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool %s validation failed: %s", e.ToolName, strings.Join(e.Errors, "; "))
}

// MalformedOutputError indicates a terminal response that did not parse as a
// structured proposal even after the corrective re-prompt.
type MalformedOutputError struct {
	Content string
	Err     error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("terminal response is not a valid proposal: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}
