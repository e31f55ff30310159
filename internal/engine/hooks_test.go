package engine

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHook struct {
	NopHook
	attempts []CondenseTelemetry
	results  []CondenseReport
}

func (h *countingHook) OnCondenseAttempt(_ context.Context, t CondenseTelemetry) {
	h.attempts = append(h.attempts, t)
}

func (h *countingHook) OnCondenseResult(_ context.Context, r CondenseReport) {
	h.results = append(h.results, r)
}

func TestHooksFanOut(t *testing.T) {
	a, b := &countingHook{}, &countingHook{}
	hs := Hooks{a, b}
	ctx := context.Background()

	hs.OnCondenseAttempt(ctx, CondenseTelemetry{TaskID: "t1", IsAutomatic: true})
	hs.OnCondenseResult(ctx, CondenseReport{TaskID: "t1", CondenseID: "c1"})
	hs.OnTruncate(ctx, "t1", "tr1", 4)

	for _, h := range []*countingHook{a, b} {
		require.Len(t, h.attempts, 1)
		assert.True(t, h.attempts[0].IsAutomatic)
		require.Len(t, h.results, 1)
		assert.Equal(t, "c1", h.results[0].CondenseID)
	}
}

func TestChannelHookDoesNotBlock(t *testing.T) {
	ch := make(chan Event, 1)
	h := ChannelHook{Ch: ch}
	ctx := context.Background()

	h.OnTruncate(ctx, "t1", "tr1", 2)
	// Buffer is full; this one is dropped rather than blocking
	h.OnRestore(ctx, "t1", 1200, 3)

	ev := <-ch
	assert.Equal(t, "truncate", ev.Kind)
	assert.Empty(t, ch)
}

func TestLoggerHook(t *testing.T) {
	var buf bytes.Buffer
	h := LoggerHook{L: log.New(&buf, "", 0)}
	ctx := context.Background()

	h.OnCondenseResult(ctx, CondenseReport{TaskID: "t1", CondenseID: "c1", PrevTokens: 1000, NewTokens: 250})
	h.OnJournalError(ctx, "t1", errors.New("disk full"))

	out := buf.String()
	assert.Contains(t, out, "reduction=75.0%")
	assert.True(t, strings.Contains(out, "JOURNAL WRITE FAILED") && strings.Contains(out, "disk full"))
}
