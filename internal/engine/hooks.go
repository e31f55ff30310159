// engine/hooks.go
package engine

import (
	"context"
	"time"
)

// CondenseTelemetry is the fire-and-forget event emitted once per condensation attempt.
type CondenseTelemetry struct {
	TaskID               string
	IsAutomatic          bool
	UsedCustomPrompt     bool
	UsedCondensingHandle bool
}

// CondenseReport summarizes the outcome of one condensation attempt.
type CondenseReport struct {
	TaskID           string
	IsAutomatic      bool
	CondenseID       string // empty on failure
	PrevTokens       int
	NewTokens        int
	Cost             float64
	ExpansionRetries int
	Err              error
}

type Hook interface {
	OnCondenseAttempt(ctx context.Context, t CondenseTelemetry)
	OnCondenseResult(ctx context.Context, r CondenseReport)
	OnExpansion(ctx context.Context, taskID string, iteration int, currentTokens, targetTokens int)
	OnHandleFallback(ctx context.Context, taskID string, reason string)
	OnTruncate(ctx context.Context, taskID string, truncationID string, removed int)
	OnRestore(ctx context.Context, taskID string, targetTs int64, restored int)
	OnJournalError(ctx context.Context, taskID string, err error)
	// Retry hooks
	OnRetryAttempt(ctx context.Context, taskID string, attempt int, maxAttempts int, delay time.Duration, err error)
	OnRetryExhausted(ctx context.Context, taskID string, err error)
}

// NopHook lets you implement any hook you need.
type NopHook struct{}

func (NopHook) OnCondenseAttempt(context.Context, CondenseTelemetry)                   {}
func (NopHook) OnCondenseResult(context.Context, CondenseReport)                       {}
func (NopHook) OnExpansion(context.Context, string, int, int, int)                     {}
func (NopHook) OnHandleFallback(context.Context, string, string)                       {}
func (NopHook) OnTruncate(context.Context, string, string, int)                        {}
func (NopHook) OnRestore(context.Context, string, int64, int)                          {}
func (NopHook) OnJournalError(context.Context, string, error)                          {}
func (NopHook) OnRetryAttempt(context.Context, string, int, int, time.Duration, error) {}
func (NopHook) OnRetryExhausted(context.Context, string, error)                        {}
