package engine

import (
	"context"
	"time"
)

type Event struct {
	Kind string // "condense_attempt", "condense_result", "expansion", "handle_fallback", "truncate", "restore", "journal_error", "retry_attempt", "retry_exhausted"
	Data any
}

// ChannelHook bridges engine events onto a channel.
// Sends never block; events are dropped when the receiver falls behind.
type ChannelHook struct{ Ch chan<- Event }

func (h ChannelHook) send(e Event) {
	select {
	case h.Ch <- e:
	default:
	}
}

func (h ChannelHook) OnCondenseAttempt(_ context.Context, t CondenseTelemetry) {
	h.send(Event{Kind: "condense_attempt", Data: t})
}
func (h ChannelHook) OnCondenseResult(_ context.Context, r CondenseReport) {
	h.send(Event{Kind: "condense_result", Data: r})
}
func (h ChannelHook) OnExpansion(_ context.Context, taskID string, iteration int, currentTokens, targetTokens int) {
	h.send(Event{Kind: "expansion", Data: map[string]any{
		"task":      taskID,
		"iteration": iteration,
		"current":   currentTokens,
		"target":    targetTokens,
	}})
}
func (h ChannelHook) OnHandleFallback(_ context.Context, taskID string, reason string) {
	h.send(Event{Kind: "handle_fallback", Data: map[string]string{"task": taskID, "reason": reason}})
}
func (h ChannelHook) OnTruncate(_ context.Context, taskID string, truncationID string, removed int) {
	h.send(Event{Kind: "truncate", Data: map[string]any{"task": taskID, "id": truncationID, "removed": removed}})
}
func (h ChannelHook) OnRestore(_ context.Context, taskID string, targetTs int64, restored int) {
	h.send(Event{Kind: "restore", Data: map[string]any{"task": taskID, "ts": targetTs, "restored": restored}})
}
func (h ChannelHook) OnJournalError(_ context.Context, taskID string, err error) {
	h.send(Event{Kind: "journal_error", Data: err.Error()})
}
func (h ChannelHook) OnRetryAttempt(_ context.Context, taskID string, attempt int, maxAttempts int, delay time.Duration, err error) {
	h.send(Event{Kind: "retry_attempt", Data: map[string]any{
		"attempt":     attempt,
		"maxAttempts": maxAttempts,
		"delay":       delay,
		"error":       err.Error(),
	}})
}
func (h ChannelHook) OnRetryExhausted(_ context.Context, taskID string, err error) {
	h.send(Event{Kind: "retry_exhausted", Data: err.Error()})
}
