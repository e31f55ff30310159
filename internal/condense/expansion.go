package condense

import "github.com/ChamsBouzaiene/dodo-context/internal/engine"

// expansionState is the phase of the summary length negotiation.
type expansionState int

const (
	stateInitial expansionState = iota
	stateExpanding
	stateAccepted
	stateRevertedToPrevious
	stateFailed
)

func (s expansionState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateExpanding:
		return "expanding"
	case stateAccepted:
		return "accepted"
	case stateRevertedToPrevious:
		return "reverted"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// candidate is one generated summary and the context size it leads to.
type candidate struct {
	summary      string
	outputTokens int
	newTokens    int
}

// observation is what one model call produced.
type observation struct {
	candidate
	empty  bool
	failed bool // model error during the call
}

// expansionLimits are fixed for one summarize call.
type expansionLimits struct {
	minTokens  int // 0 disables expansion
	prevTokens int
	ceiling    int
}

// expansion is the value threaded through step. best is always the summary that
// would be committed if the machine stopped now.
type expansion struct {
	state     expansionState
	iteration int // expansion calls made so far
	best      candidate
	failure   engine.CondenseErrorClass
}

func (e expansion) done() bool {
	switch e.state {
	case stateAccepted, stateRevertedToPrevious, stateFailed:
		return true
	}
	return false
}

// committed reports whether the machine ended with a summary to keep.
func (e expansion) committed() bool {
	return e.state == stateAccepted || e.state == stateRevertedToPrevious
}

// step advances the machine with the result of the next model call. It is pure.
func step(e expansion, obs observation, lim expansionLimits) expansion {
	switch e.state {
	case stateInitial:
		if obs.failed {
			e.state, e.failure = stateFailed, engine.CondenseModel
			return e
		}
		if obs.empty {
			e.state, e.failure = stateFailed, engine.CondenseEmptyResponse
			return e
		}
		e.best = obs.candidate
		return next(e, lim)

	case stateExpanding:
		e.iteration++
		if obs.failed || obs.empty || obs.newTokens >= lim.prevTokens {
			// Keep the previous summary and stop asking.
			e.state = stateRevertedToPrevious
			return settle(e, lim)
		}
		e.best = obs.candidate
		return next(e, lim)
	}
	return e
}

// next decides whether another expansion is needed after best changed.
func next(e expansion, lim expansionLimits) expansion {
	if e.best.newTokens >= lim.prevTokens {
		// Expanding only grows the context, so this can no longer pay off.
		e.state = stateAccepted
		return settle(e, lim)
	}
	if lim.minTokens > 0 && e.best.newTokens < lim.minTokens && e.iteration < lim.ceiling {
		e.state = stateExpanding
		return e
	}
	e.state = stateAccepted
	return settle(e, lim)
}

// settle applies the final savings check to a terminal state.
func settle(e expansion, lim expansionLimits) expansion {
	if e.best.newTokens >= lim.prevTokens {
		e.state, e.failure = stateFailed, engine.CondenseUnproductive
	}
	return e
}
