package condense

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/journal"
)

// reply is one scripted model answer.
type reply struct {
	chunks       []string
	outputTokens int
	cost         float64
	noUsage      bool
	err          error
}

// MockLLMClient replays scripted replies; the last one repeats.
type MockLLMClient struct {
	replies []reply
	invalid error
	block   bool // wait for cancellation instead of replying

	mu       sync.Mutex
	systems  []string
	requests [][]engine.ChatMessage
}

func (m *MockLLMClient) CreateMessage(ctx context.Context, systemPrompt string, messages []engine.ChatMessage) (<-chan engine.StreamEvent, <-chan error) {
	m.mu.Lock()
	m.systems = append(m.systems, systemPrompt)
	m.requests = append(m.requests, engine.CloneMessages(messages))
	n := len(m.requests)
	m.mu.Unlock()

	events := make(chan engine.StreamEvent, 16)
	errs := make(chan error, 1)

	if m.block {
		go func() {
			events <- engine.StreamEvent{Type: engine.StreamEventText, Text: "partial"}
			<-ctx.Done()
			errs <- ctx.Err()
			close(events)
			close(errs)
		}()
		return events, errs
	}

	r := m.replies[len(m.replies)-1]
	if n <= len(m.replies) {
		r = m.replies[n-1]
	}
	for _, c := range r.chunks {
		events <- engine.StreamEvent{Type: engine.StreamEventText, Text: c}
	}
	if !r.noUsage {
		events <- engine.StreamEvent{Type: engine.StreamEventUsage, Usage: engine.Usage{Completion: r.outputTokens, TotalCost: r.cost}}
	}
	if r.err != nil {
		errs <- r.err
	}
	close(events)
	close(errs)
	return events, errs
}

func (m *MockLLMClient) Validate() error { return m.invalid }

func (m *MockLLMClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// fixedCounter returns the same count for any context.
type fixedCounter int

func (c fixedCounter) CountTokens(ctx context.Context, _ []engine.ChatMessage) (int, error) {
	return int(c), ctx.Err()
}

// perMessageCounter charges a flat amount per message.
type perMessageCounter int

func (c perMessageCounter) CountTokens(_ context.Context, msgs []engine.ChatMessage) (int, error) {
	return int(c) * len(msgs), nil
}

// memJournal records appended entries.
type memJournal struct {
	entries []journal.Entry
	err     error
}

func (j *memJournal) Append(_ context.Context, _ string, e journal.Entry) error {
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, e)
	return nil
}

// recordingHook keeps the events the tests look at.
type recordingHook struct {
	engine.NopHook
	telemetry  []engine.CondenseTelemetry
	expansions []int
	fallbacks  []string
	truncates  int
	journalErr []error
}

func (h *recordingHook) OnCondenseAttempt(_ context.Context, t engine.CondenseTelemetry) {
	h.telemetry = append(h.telemetry, t)
}
func (h *recordingHook) OnExpansion(_ context.Context, _ string, iteration int, _, _ int) {
	h.expansions = append(h.expansions, iteration)
}
func (h *recordingHook) OnHandleFallback(_ context.Context, _ string, reason string) {
	h.fallbacks = append(h.fallbacks, reason)
}
func (h *recordingHook) OnTruncate(context.Context, string, string, int) { h.truncates++ }
func (h *recordingHook) OnJournalError(_ context.Context, _ string, err error) {
	h.journalErr = append(h.journalErr, err)
}

func testRetryPolicy() engine.RetryPolicy {
	return engine.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

// conversation builds n alternating messages with ts 1000, 1100, ...
func conversation(n int) []engine.ChatMessage {
	msgs := make([]engine.ChatMessage, n)
	for i := range msgs {
		role := engine.RoleUser
		if i%2 == 1 {
			role = engine.RoleAssistant
		}
		msgs[i] = engine.ChatMessage{Role: role, Content: fmt.Sprintf("message %d", i), Ts: 1000 + int64(i)*100}
	}
	return msgs
}

func tsOf(msgs []engine.ChatMessage) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.Ts
	}
	return out
}

var errUnavailable = errors.New("503 service unavailable")
