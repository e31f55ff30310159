package condense

import (
	"context"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
)

// generation is the collected result of one streamed model reply.
type generation struct {
	text         string
	outputTokens int
	sawUsage     bool
	cost         float64
}

// collect drains one reply. Text chunks are concatenated, the first usage record gives
// the output token count and every usage record adds to the cost.
func collect(ctx context.Context, events <-chan engine.StreamEvent, errs <-chan error) (generation, error) {
	var g generation
	var sb strings.Builder

	for events != nil {
		select {
		case <-ctx.Done():
			g.text = sb.String()
			return g, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Type {
			case engine.StreamEventText:
				sb.WriteString(ev.Text)
			case engine.StreamEventUsage:
				if !g.sawUsage {
					g.outputTokens = ev.Usage.Completion
					g.sawUsage = true
				}
				g.cost += ev.Usage.TotalCost
			}
		}
	}
	g.text = sb.String()

	if errs == nil {
		return g, ctx.Err()
	}
	select {
	case <-ctx.Done():
		return g, ctx.Err()
	case err := <-errs:
		if err != nil {
			return g, err
		}
	}
	return g, ctx.Err()
}

// generate runs one model call with retries. Cost of failed attempts is kept.
func (p *Policy) generate(ctx context.Context, taskID string, client engine.LLMClient, systemPrompt string, msgs []engine.ChatMessage) (generation, error) {
	spent := 0.0
	g, err := engine.RetryWithPolicy(ctx, p.retry,
		func(ctx context.Context) (generation, error) {
			events, errs := client.CreateMessage(ctx, systemPrompt, msgs)
			g, err := collect(ctx, events, errs)
			spent += g.cost
			return g, err
		},
		engine.ClassifyLLMError,
		func(attempt int, delay time.Duration, err error) {
			p.hooks.OnRetryAttempt(ctx, taskID, attempt, p.retry.MaxRetries, delay, err)
		},
	)
	g.cost = spent
	if err != nil && engine.IsRetryExhausted(err) {
		p.hooks.OnRetryExhausted(ctx, taskID, err)
	}
	return g, err
}
