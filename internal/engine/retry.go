package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior for inference calls.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retry attempts (0 = no retries)
	MaxDelay   time.Duration // Maximum delay cap
	Jitter     bool          // Whether to add random jitter to delays
}

// DefaultRetryPolicy returns the default policy: three retries, capped waits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MaxDelay:   30 * time.Second,
		Jitter:     true,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// RetryWithPolicy executes a function, retrying rate-limit faults up to the
// policy bound. Any other failure is returned immediately. Exhausting retries
// returns a RetryExhaustedError, which callers treat as a fatal transport
// fault.
func RetryWithPolicy[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn RetryableFunc[T],
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T

	attempt := 0

	for {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if !IsRateLimited(err) {
			return zero, err
		}

		if attempt >= policy.MaxRetries {
			return zero, &RetryExhaustedError{Err: err, Attempts: attempt}
		}

		delay := calculateDelay(policy, attempt, err)

		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}

		attempt++
	}
}

// calculateDelay computes the delay for a retry attempt. A wait suggested by
// the service (Retry-After header or a "try again in 630ms" hint) wins;
// otherwise exponential backoff with a linear component per attempt.
func calculateDelay(policy RetryPolicy, attempt int, err error) time.Duration {
	suggested := ExtractRetryAfter(err)
	if suggested > 0 {
		if policy.MaxDelay > 0 && suggested > policy.MaxDelay {
			return policy.MaxDelay
		}
		return suggested
	}

	seconds := math.Pow(2, float64(attempt)) + float64(attempt)*0.5
	delay := seconds * float64(time.Second)

	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	if policy.Jitter {
		delay += rand.Float64() * 0.2 * delay // 0-20% jitter
	}

	return time.Duration(delay)
}

// RetryLLMCall wraps an inference call with the backoff policy.
func RetryLLMCall(
	ctx context.Context,
	policy RetryPolicy,
	llm LLMClient,
	model string,
	messages []ChatMessage,
	toolSchemas []ToolSchema,
	opts ChatOptions,
	onRetry func(attempt int, delay time.Duration, err error),
) (LLMResponse, error) {
	return RetryWithPolicy(
		ctx,
		policy,
		func(ctx context.Context) (LLMResponse, error) {
			return llm.Chat(ctx, model, messages, toolSchemas, opts)
		},
		onRetry,
	)
}
