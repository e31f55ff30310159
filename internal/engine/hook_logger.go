// engine/hook_logger.go
package engine

import (
	"context"
	"log"
	"time"
)

type LoggerHook struct{ L *log.Logger }

func (h LoggerHook) OnCondenseAttempt(_ context.Context, t CondenseTelemetry) {
	h.L.Printf("condense task=%s auto=%t custom_prompt=%t condensing_handle=%t",
		t.TaskID, t.IsAutomatic, t.UsedCustomPrompt, t.UsedCondensingHandle)
}
func (h LoggerHook) OnCondenseResult(_ context.Context, r CondenseReport) {
	if r.Err != nil {
		h.L.Printf("⚠️  condense task=%s failed: %v (tokens=%d cost=$%.4f)", r.TaskID, r.Err, r.PrevTokens, r.Cost)
		return
	}
	reduction := 0.0
	if r.PrevTokens > 0 {
		reduction = float64(r.PrevTokens-r.NewTokens) / float64(r.PrevTokens) * 100
	}
	h.L.Printf("✅ condense task=%s id=%s tokens: before=%d after=%d reduction=%.1f%% expansions=%d cost=$%.4f",
		r.TaskID, r.CondenseID, r.PrevTokens, r.NewTokens, reduction, r.ExpansionRetries, r.Cost)
}
func (h LoggerHook) OnExpansion(_ context.Context, taskID string, iteration int, currentTokens, targetTokens int) {
	h.L.Printf("condense task=%s expansion=%d current=%d target=%d", taskID, iteration, currentTokens, targetTokens)
}
func (h LoggerHook) OnHandleFallback(_ context.Context, taskID string, reason string) {
	h.L.Printf("⚠️  condense task=%s falling back to primary handle: %s", taskID, reason)
}
func (h LoggerHook) OnTruncate(_ context.Context, taskID string, truncationID string, removed int) {
	h.L.Printf("truncate task=%s id=%s hidden=%d", taskID, truncationID, removed)
}
func (h LoggerHook) OnRestore(_ context.Context, taskID string, targetTs int64, restored int) {
	if restored == 0 {
		h.L.Printf("restore task=%s ts=%d: nothing to restore", taskID, targetTs)
		return
	}
	h.L.Printf("restore task=%s ts=%d restored=%d", taskID, targetTs, restored)
}
func (h LoggerHook) OnJournalError(_ context.Context, taskID string, err error) {
	h.L.Printf("⚠️  JOURNAL WRITE FAILED task=%s: %v", taskID, err)
}
func (h LoggerHook) OnRetryAttempt(_ context.Context, taskID string, attempt int, maxAttempts int, delay time.Duration, err error) {
	h.L.Printf("retry task=%s attempt=%d/%d delay=%v error=%v", taskID, attempt, maxAttempts, delay, err)
}
func (h LoggerHook) OnRetryExhausted(_ context.Context, taskID string, err error) {
	h.L.Printf("retries exhausted task=%s: %v", taskID, err)
}
