package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryWithPolicy(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		failWith     error
		retries      int
		wantCalls    int
		wantErr      bool
		wantExhausted bool
	}{
		{
			name:      "first try succeeds",
			failures:  0,
			retries:   3,
			wantCalls: 1,
		},
		{
			name:      "recovers after transient errors",
			failures:  2,
			failWith:  errors.New("503 service unavailable"),
			retries:   3,
			wantCalls: 3,
		},
		{
			name:      "non retryable fails immediately",
			failures:  5,
			failWith:  errors.New("401 unauthorized"),
			retries:   3,
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:         "exhausts retries",
			failures:     10,
			failWith:     errors.New("connection reset by peer"),
			retries:      2,
			wantCalls:    3,
			wantErr:      true,
			wantExhausted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			retried := 0
			got, err := RetryWithPolicy(context.Background(), fastPolicy(tt.retries),
				func(ctx context.Context) (int, error) {
					calls++
					if calls <= tt.failures {
						return calls, tt.failWith
					}
					return calls, nil
				},
				ClassifyLLMError,
				func(int, time.Duration, error) { retried++ },
			)

			if (err != nil) != tt.wantErr {
				t.Fatalf("RetryWithPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if retried != calls-1 {
				t.Errorf("onRetry called %d times, want %d", retried, calls-1)
			}
			if IsRetryExhausted(err) != tt.wantExhausted {
				t.Errorf("IsRetryExhausted = %v, want %v", IsRetryExhausted(err), tt.wantExhausted)
			}
			// The last attempt's value is always handed back
			if got != calls {
				t.Errorf("result = %d, want %d", got, calls)
			}
		})
	}
}

func TestRetryWithPolicyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}

	_, err := RetryWithPolicy(ctx, policy,
		func(ctx context.Context) (struct{}, error) {
			cancel()
			return struct{}{}, errors.New("502 bad gateway")
		},
		ClassifyLLMError, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateDelayCapsAtMax(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	if d := calculateDelay(policy, 5, errors.New("x")); d != 3*time.Second {
		t.Errorf("calculateDelay = %v, want 3s", d)
	}
	withHeader := WrapLLMError(errors.New("429"), 429, "60")
	if d := calculateDelay(policy, 0, withHeader); d != 3*time.Second {
		t.Errorf("Retry-After should be capped, got %v", d)
	}
}
