// Package condense decides when and how the message log is shrunk: model written
// summaries that hide the messages they replace, with sliding-window truncation as the
// deterministic fallback.
package condense

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/history"
	"github.com/ChamsBouzaiene/dodo-context/internal/journal"
	"github.com/ChamsBouzaiene/dodo-context/internal/prompts"
)

// JournalWriter records committed condensations.
type JournalWriter interface {
	Append(ctx context.Context, taskID string, e journal.Entry) error
}

// SummarizeRequest is the input of one condensation attempt.
type SummarizeRequest struct {
	Messages              []engine.ChatMessage // stored log, hidden messages included
	Client                engine.LLMClient     // primary model handle
	CondensingClient      engine.LLMClient     // optional dedicated handle
	SystemPrompt          string               // the task's system prompt, counted as kept context
	TaskID                string
	PrevContextTokens     int
	IsAutomatic           bool
	CustomPrompt          string // replaces the summary instructions when not blank
	MinimumCondenseTokens int    // expand summaries that leave less context than this; 0 disables
}

// SummarizeResult is the outcome of a condensation attempt. On failure Messages is the
// unchanged input and Error is set; Cost is always what was spent.
type SummarizeResult struct {
	Messages         []engine.ChatMessage
	Summary          string
	Cost             float64
	NewContextTokens int
	CondenseID       string
	Error            string
	Err              error // typed form of Error, an *engine.CondenseError
	JournalErr       error // set when the condense committed but the journal write failed
}

// Policy runs condensation attempts.
type Policy struct {
	counter engine.TokenCounter
	journal JournalWriter
	hooks   engine.Hook
	retry   engine.RetryPolicy
	cfg     engine.CondenseConfig
	newID   func() string
}

// Option configures a Policy.
type Option func(*Policy)

// WithJournal records every committed condensation in j.
func WithJournal(j JournalWriter) Option {
	return func(p *Policy) { p.journal = j }
}

// WithHooks sets the event sink.
func WithHooks(h engine.Hook) Option {
	return func(p *Policy) { p.hooks = h }
}

// WithRetryPolicy overrides the model call retry policy.
func WithRetryPolicy(r engine.RetryPolicy) Option {
	return func(p *Policy) { p.retry = r }
}

// WithConfig overrides the condensation defaults.
func WithConfig(cfg engine.CondenseConfig) Option {
	return func(p *Policy) { p.cfg = cfg }
}

// WithIDGenerator overrides condense id generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Policy) { p.newID = fn }
}

// NewPolicy creates a Policy that measures context with counter.
func NewPolicy(counter engine.TokenCounter, opts ...Option) *Policy {
	p := &Policy{
		counter: counter,
		hooks:   engine.NopHook{},
		retry:   engine.DefaultRetryConfig().LLMPolicy,
		cfg:     engine.DefaultCondenseConfig(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// plan is the split of the visible log computed before any model call.
type plan struct {
	retained  []engine.ChatMessage // visible messages that stay ahead of the summary
	request   []engine.ChatMessage // messages sent for summarization
	compress  []engine.ChatMessage // messages that will be hidden
	kept      []engine.ChatMessage // tail preserved verbatim
	summaryTs int64
}

// Summarize condenses the log. It never panics or returns an error value; failures
// come back in the result with the original messages.
func (p *Policy) Summarize(ctx context.Context, req SummarizeRequest) SummarizeResult {
	client, usedCondensing := p.pickClient(ctx, req)
	p.hooks.OnCondenseAttempt(ctx, engine.CondenseTelemetry{
		TaskID:               req.TaskID,
		IsAutomatic:          req.IsAutomatic,
		UsedCustomPrompt:     strings.TrimSpace(req.CustomPrompt) != "",
		UsedCondensingHandle: usedCondensing,
	})

	res := p.summarize(ctx, req, client)
	p.hooks.OnCondenseResult(ctx, engine.CondenseReport{
		TaskID:      req.TaskID,
		IsAutomatic: req.IsAutomatic,
		CondenseID:  res.CondenseID,
		PrevTokens:  req.PrevContextTokens,
		NewTokens:   res.NewContextTokens,
		Cost:        res.Cost,
		Err:         res.Err,
	})
	return res
}

func (p *Policy) summarize(ctx context.Context, req SummarizeRequest, client engine.LLMClient) SummarizeResult {
	pl, cerr := p.plan(req.Messages)
	if cerr != nil {
		return failed(req.Messages, 0, cerr)
	}
	if client == nil {
		return failed(req.Messages, 0, engine.NewCondenseError(engine.CondenseHandlerInvalid,
			"no valid model handle available for condensing", engine.CheckClient(req.Client)))
	}

	systemPrompt := prompts.Latest(prompts.CondenseSummaryID)
	if custom := strings.TrimSpace(req.CustomPrompt); custom != "" {
		systemPrompt = custom
	}
	request := append(engine.CloneMessages(pl.request), engine.ChatMessage{
		Role:    engine.RoleUser,
		Content: prompts.Latest(prompts.CondenseFinalRequestID),
		Ts:      pl.summaryTs,
	})

	lim := expansionLimits{
		minTokens:  req.MinimumCondenseTokens,
		prevTokens: req.PrevContextTokens,
		ceiling:    p.cfg.MaxExpansionRetries,
	}

	cost := 0.0
	state := expansion{state: stateInitial}
	var lastErr error
	for !state.done() {
		msgs := request
		if state.state == stateExpanding {
			prompt, err := prompts.BuildExpansion(state.best.newTokens, lim.minTokens)
			if err != nil {
				lastErr = err
				state = step(state, observation{failed: true}, lim)
				continue
			}
			p.hooks.OnExpansion(ctx, req.TaskID, state.iteration+1, state.best.newTokens, lim.minTokens)
			msgs = append(engine.CloneMessages(request),
				engine.ChatMessage{Role: engine.RoleAssistant, Content: state.best.summary},
				engine.ChatMessage{Role: engine.RoleUser, Content: prompt},
			)
		}

		g, err := p.generate(ctx, req.TaskID, client, systemPrompt, msgs)
		cost += g.cost
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			if ctxErr == nil {
				ctxErr = err
			}
			return failed(req.Messages, cost, engine.NewCondenseError(engine.CondenseCancelled, "condensing was cancelled", ctxErr))
		}

		obs := observation{}
		switch {
		case err != nil:
			lastErr = err
			obs.failed = true
		case strings.TrimSpace(g.text) == "":
			obs.empty = true
		default:
			summary := strings.TrimSpace(g.text)
			tokens, err := p.newContextTokens(ctx, req.SystemPrompt, pl, summary, g.outputTokens)
			if err != nil {
				return failed(req.Messages, cost, engine.NewCondenseError(engine.CondenseModel, "failed to count tokens", err))
			}
			obs.candidate = candidate{summary: summary, outputTokens: g.outputTokens, newTokens: tokens}
		}
		state = step(state, obs, lim)
	}

	if !state.committed() {
		return failed(req.Messages, cost, failureError(state, lastErr, req.PrevContextTokens))
	}

	res := p.commit(ctx, req, pl, state.best)
	res.Cost = cost
	return res
}

// pickClient prefers the condensing handle and falls back to the primary one.
func (p *Policy) pickClient(ctx context.Context, req SummarizeRequest) (engine.LLMClient, bool) {
	if req.CondensingClient != nil {
		err := engine.CheckClient(req.CondensingClient)
		if err == nil {
			return req.CondensingClient, true
		}
		p.hooks.OnHandleFallback(ctx, req.TaskID, err.Error())
	}
	if engine.CheckClient(req.Client) == nil {
		return req.Client, false
	}
	return nil, false
}

// plan applies the eligibility guards and splits the visible log.
func (p *Policy) plan(msgs []engine.ChatMessage) (plan, *engine.CondenseError) {
	keep := p.cfg.KeepMessages
	visible := history.Effective(msgs)

	recent := visible
	if len(recent) > keep+1 {
		recent = recent[len(recent)-(keep+1):]
	}
	for _, m := range recent {
		if m.IsSummary {
			return plan{}, engine.NewCondenseError(engine.CondenseIneligible, "context was condensed recently; nothing new to condense", nil)
		}
	}
	if len(visible) <= keep+1 {
		return plan{}, engine.NewCondenseError(engine.CondenseIneligible, "not enough messages to condense", nil)
	}

	head := visible[:len(visible)-keep]
	pl := plan{
		kept:    visible[len(visible)-keep:],
		request: history.MessagesSinceLastSummary(head),
	}
	if idx := history.LastSummaryIndex(head); idx < 0 {
		// The first message anchors the conversation; it is summarized but stays visible.
		pl.retained = head[:1]
		pl.compress = head[1:]
	} else {
		pl.retained = head[:idx]
		pl.compress = head[idx:]
	}

	for i, m := range msgs {
		if m.Ts == pl.kept[0].Ts {
			pl.summaryTs = history.SyntheticTs(msgs, i)
			break
		}
	}
	return pl, nil
}

// newContextTokens measures the context that would follow a commit.
func (p *Policy) newContextTokens(ctx context.Context, systemPrompt string, pl plan, summary string, outputTokens int) (int, error) {
	ctxMsgs := []engine.ChatMessage{{Role: engine.RoleUser, Content: systemPrompt}}
	ctxMsgs = append(ctxMsgs, pl.retained...)
	if outputTokens == 0 {
		ctxMsgs = append(ctxMsgs, engine.ChatMessage{Role: engine.RoleAssistant, Content: summary})
	}
	ctxMsgs = append(ctxMsgs, pl.kept...)

	n, err := p.counter.CountTokens(ctx, ctxMsgs)
	if err != nil {
		return 0, err
	}
	return outputTokens + n, nil
}

// commit splices the summary into the stored log, hides what it replaced and journals it.
func (p *Policy) commit(ctx context.Context, req SummarizeRequest, pl plan, best candidate) SummarizeResult {
	condenseID := p.newID()
	compressed := make(map[int64]bool, len(pl.compress))
	for _, m := range pl.compress {
		compressed[m.Ts] = true
	}

	summaryMsg := engine.ChatMessage{
		Role:       engine.RoleAssistant,
		Content:    best.summary,
		Ts:         pl.summaryTs,
		IsSummary:  true,
		CondenseID: condenseID,
	}

	out := make([]engine.ChatMessage, 0, len(req.Messages)+1)
	inserted := false
	for _, m := range req.Messages {
		if !inserted && m.Ts == pl.kept[0].Ts {
			out = append(out, summaryMsg)
			inserted = true
		}
		if compressed[m.Ts] {
			// Any pointer a visible message still carries is orphaned.
			m.TruncationParent = ""
			m.CondenseParent = condenseID
		}
		out = append(out, m)
	}

	res := SummarizeResult{
		Messages:         out,
		Summary:          best.summary,
		NewContextTokens: best.newTokens,
		CondenseID:       condenseID,
	}

	if p.journal != nil {
		entry := journal.NewEntry(pl.compress, journal.Boundary{
			FirstKeptTs: journal.Int64(pl.kept[0].Ts),
			LastKeptTs:  journal.Int64(pl.kept[len(pl.kept)-1].Ts),
			SummaryTs:   journal.Int64(pl.summaryTs),
		}, journal.TypeFor(req.IsAutomatic), condenseID)
		if err := p.journal.Append(ctx, req.TaskID, entry); err != nil {
			res.JournalErr = engine.NewCondenseError(engine.CondenseStorage, "condensed but failed to write journal", err)
			p.hooks.OnJournalError(ctx, req.TaskID, res.JournalErr)
		}
	}
	return res
}

func failed(msgs []engine.ChatMessage, cost float64, err *engine.CondenseError) SummarizeResult {
	return SummarizeResult{
		Messages: msgs,
		Cost:     cost,
		Error:    err.Error(),
		Err:      err,
	}
}

func failureError(state expansion, modelErr error, prevTokens int) *engine.CondenseError {
	switch state.failure {
	case engine.CondenseEmptyResponse:
		return engine.NewCondenseError(engine.CondenseEmptyResponse, "failed to generate a summary: empty response", nil)
	case engine.CondenseModel:
		return engine.NewCondenseError(engine.CondenseModel, "failed to generate a summary", modelErr)
	case engine.CondenseUnproductive:
		return engine.NewCondenseError(engine.CondenseUnproductive,
			fmt.Sprintf("condensing did not reduce the context (%d tokens, was %d)", state.best.newTokens, prevTokens), nil)
	}
	return engine.NewCondenseError(state.failure, "condensing failed", modelErr)
}
