package condense

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
)

func obsOf(summary string, tokens int) observation {
	return observation{candidate: candidate{summary: summary, newTokens: tokens}}
}

func TestExpansionStep(t *testing.T) {
	lim := expansionLimits{minTokens: 300, prevTokens: 1000, ceiling: 2}

	tests := []struct {
		name      string
		obs       []observation
		wantState expansionState
		wantBest  string
		wantFail  engine.CondenseErrorClass
	}{
		{
			name:      "accepted at once",
			obs:       []observation{obsOf("a", 400)},
			wantState: stateAccepted,
			wantBest:  "a",
		},
		{
			name:      "empty first reply",
			obs:       []observation{{empty: true}},
			wantState: stateFailed,
			wantFail:  engine.CondenseEmptyResponse,
		},
		{
			name:      "model failure on first reply",
			obs:       []observation{{failed: true}},
			wantState: stateFailed,
			wantFail:  engine.CondenseModel,
		},
		{
			name:      "expanded until long enough",
			obs:       []observation{obsOf("a", 100), obsOf("b", 350)},
			wantState: stateAccepted,
			wantBest:  "b",
		},
		{
			name:      "ceiling keeps the best",
			obs:       []observation{obsOf("a", 100), obsOf("b", 150), obsOf("c", 200)},
			wantState: stateAccepted,
			wantBest:  "c",
		},
		{
			name:      "overshoot reverts",
			obs:       []observation{obsOf("a", 100), obsOf("b", 1200)},
			wantState: stateRevertedToPrevious,
			wantBest:  "a",
		},
		{
			name:      "empty expansion reverts",
			obs:       []observation{obsOf("a", 100), {empty: true}},
			wantState: stateRevertedToPrevious,
			wantBest:  "a",
		},
		{
			name:      "unproductive",
			obs:       []observation{obsOf("a", 1000)},
			wantState: stateFailed,
			wantFail:  engine.CondenseUnproductive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := expansion{state: stateInitial}
			for _, o := range tt.obs {
				assert.False(t, e.done(), "machine stopped early in state %s", e.state)
				e = step(e, o, lim)
			}
			assert.True(t, e.done())
			assert.Equal(t, tt.wantState, e.state, "got %s", e.state)
			assert.Equal(t, tt.wantFail, e.failure)
			if tt.wantBest != "" {
				assert.Equal(t, tt.wantBest, e.best.summary)
				assert.True(t, e.committed())
			}
		})
	}
}

func TestExpansionStopsWhenFirstReplyIsUnproductive(t *testing.T) {
	// the target is above the old context, but the first summary already fills it
	lim := expansionLimits{minTokens: 2000, prevTokens: 1000, ceiling: 5}
	e := step(expansion{state: stateInitial}, obsOf("a", 1000), lim)
	assert.Equal(t, stateFailed, e.state)
	assert.Equal(t, engine.CondenseUnproductive, e.failure)
	assert.Zero(t, e.iteration)
}

func TestExpansionDisabled(t *testing.T) {
	e := step(expansion{state: stateInitial}, obsOf("a", 10), expansionLimits{prevTokens: 100, ceiling: 5})
	assert.Equal(t, stateAccepted, e.state)
	assert.Zero(t, e.iteration)
}
