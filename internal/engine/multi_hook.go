package engine

import (
	"context"
	"time"
)

type Hooks []Hook

func (hs Hooks) OnCondenseAttempt(ctx context.Context, t CondenseTelemetry) {
	for _, h := range hs {
		h.OnCondenseAttempt(ctx, t)
	}
}
func (hs Hooks) OnCondenseResult(ctx context.Context, r CondenseReport) {
	for _, h := range hs {
		h.OnCondenseResult(ctx, r)
	}
}
func (hs Hooks) OnExpansion(ctx context.Context, taskID string, iteration int, currentTokens, targetTokens int) {
	for _, h := range hs {
		h.OnExpansion(ctx, taskID, iteration, currentTokens, targetTokens)
	}
}
func (hs Hooks) OnHandleFallback(ctx context.Context, taskID string, reason string) {
	for _, h := range hs {
		h.OnHandleFallback(ctx, taskID, reason)
	}
}
func (hs Hooks) OnTruncate(ctx context.Context, taskID string, truncationID string, removed int) {
	for _, h := range hs {
		h.OnTruncate(ctx, taskID, truncationID, removed)
	}
}
func (hs Hooks) OnRestore(ctx context.Context, taskID string, targetTs int64, restored int) {
	for _, h := range hs {
		h.OnRestore(ctx, taskID, targetTs, restored)
	}
}
func (hs Hooks) OnJournalError(ctx context.Context, taskID string, err error) {
	for _, h := range hs {
		h.OnJournalError(ctx, taskID, err)
	}
}
func (hs Hooks) OnRetryAttempt(ctx context.Context, taskID string, attempt int, maxAttempts int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, taskID, attempt, maxAttempts, delay, err)
	}
}
func (hs Hooks) OnRetryExhausted(ctx context.Context, taskID string, err error) {
	for _, h := range hs {
		h.OnRetryExhausted(ctx, taskID, err)
	}
}
