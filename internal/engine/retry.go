package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior for a specific operation type.
type RetryPolicy struct {
	MaxRetries   int           // Maximum number of retry attempts (0 = no retries)
	InitialDelay time.Duration // Initial delay before first retry
	MaxDelay     time.Duration // Maximum delay cap
	Multiplier   float64       // Exponential backoff multiplier (e.g., 2.0)
	Jitter       bool          // Whether to add random jitter to delays
}

// RetryableFunc is a function that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// RetryWithPolicy executes a function with retry logic based on the policy.
// Returns the result on success, or the last error if all retries are exhausted.
// The last result is returned alongside a failure so callers can keep partial
// accounting such as cost.
func RetryWithPolicy[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn RetryableFunc[T],
	classifyError func(error) RetryClass,
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	attempt := 0

	for {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		class := classifyError(err)
		if class == RetryClassNonRetryable {
			return result, err
		}

		if attempt >= policy.MaxRetries {
			if policy.MaxRetries == 0 {
				return result, err
			}
			return result, NewRetryExhaustedError(err, attempt, policy.MaxRetries, false)
		}

		// For "maybe" class, limit to 1-2 retries
		if class == RetryClassMaybe && attempt >= 2 {
			return result, NewRetryExhaustedError(err, attempt, 2, true)
		}

		delay := calculateDelay(policy, attempt, err)

		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}

		attempt++
	}
}

// calculateDelay computes the delay for a retry attempt.
func calculateDelay(policy RetryPolicy, attempt int, err error) time.Duration {
	retryAfter := ExtractRetryAfter(err)
	if retryAfter > 0 {
		if retryAfter > policy.MaxDelay {
			return policy.MaxDelay
		}
		return retryAfter
	}

	// Exponential backoff: initialDelay * (multiplier ^ attempt)
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))

	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	// 0-20% jitter
	if policy.Jitter {
		jitter := rand.Float64() * 0.2 * delay
		delay += jitter
	}

	return time.Duration(delay)
}
