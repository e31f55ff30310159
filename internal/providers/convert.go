package providers

import (
	"strings"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
)

// turn is one provider-facing message after adjacent same-role messages are merged.
type turn struct {
	role    engine.MessageRole
	content string
}

// mergeTurns folds consecutive messages of the same role into one turn and drops
// blank content. Both providers reject empty turns and Anthropic rejects
// two user or two assistant turns in a row.
func mergeTurns(messages []engine.ChatMessage) []turn {
	var turns []turn
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == msg.Role {
			turns[n-1].content += "\n\n" + content
			continue
		}
		turns = append(turns, turn{role: msg.Role, content: content})
	}
	return turns
}

// usageEvent builds the usage event of a finished reply, priced for model.
func usageEvent(model string, prompt, completion int) engine.StreamEvent {
	return engine.StreamEvent{
		Type: engine.StreamEventUsage,
		Usage: engine.Usage{
			Prompt:     prompt,
			Completion: completion,
			Total:      prompt + completion,
			TotalCost:  engine.GetModelInfo(model).Cost(prompt, completion),
		},
	}
}

// trySend delivers err unless one is already pending.
func trySend(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}
