// Package history computes the view of a stored message log that is sent to the model.
// Stored logs are never shortened by condensation; removed messages carry a parent
// pointer and are filtered out here while the summary or marker they point at exists.
package history

import (
	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/prompts"
)

type idSet map[string]struct{}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// ActiveIDs returns the condense ids of summaries and the truncation ids of markers
// present in msgs.
func ActiveIDs(msgs []engine.ChatMessage) (condense, truncation map[string]struct{}) {
	c, t := activeIDs(msgs)
	return c, t
}

func activeIDs(msgs []engine.ChatMessage) (idSet, idSet) {
	condense := make(idSet)
	truncation := make(idSet)
	for _, m := range msgs {
		if m.IsSummary && m.CondenseID != "" {
			condense[m.CondenseID] = struct{}{}
		}
		if m.IsTruncationMarker && m.TruncationID != "" {
			truncation[m.TruncationID] = struct{}{}
		}
	}
	return condense, truncation
}

// Effective returns the messages visible to the model. A message is hidden only while
// the summary or marker it points at is present; orphaned pointers pass through.
func Effective(msgs []engine.ChatMessage) []engine.ChatMessage {
	condense, truncation := activeIDs(msgs)
	out := make([]engine.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if hiddenBy(m, condense, truncation) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// IsHidden reports whether m is hidden given the active ids returned by ActiveIDs.
func IsHidden(m engine.ChatMessage, condense, truncation map[string]struct{}) bool {
	return hiddenBy(m, condense, truncation)
}

func hiddenBy(m engine.ChatMessage, condense, truncation idSet) bool {
	if m.CondenseParent != "" && condense.has(m.CondenseParent) {
		return true
	}
	if m.TruncationParent != "" && truncation.has(m.TruncationParent) {
		return true
	}
	return false
}

// CleanupOrphans returns a copy of msgs with every parent pointer that refers to a
// missing summary or marker cleared. The input is not modified.
func CleanupOrphans(msgs []engine.ChatMessage) []engine.ChatMessage {
	condense, truncation := activeIDs(msgs)
	out := engine.CloneMessages(msgs)
	for i := range out {
		if out[i].CondenseParent != "" && !condense.has(out[i].CondenseParent) {
			out[i].CondenseParent = ""
		}
		if out[i].TruncationParent != "" && !truncation.has(out[i].TruncationParent) {
			out[i].TruncationParent = ""
		}
	}
	return out
}

// RewindTo drops every message ordered at or after targetTs and clears pointers left
// dangling by summaries or markers that were dropped with them.
func RewindTo(msgs []engine.ChatMessage, targetTs int64) []engine.ChatMessage {
	keys := engine.OrderKeys(msgs)
	kept := make([]engine.ChatMessage, 0, len(msgs))
	for i, m := range msgs {
		if keys[i] < 2*targetTs {
			kept = append(kept, m)
		}
	}
	return CleanupOrphans(kept)
}

// RemoveSummary deletes the summary with the given condense id, making the messages it
// replaced visible again. It reports false when no such summary exists.
func RemoveSummary(msgs []engine.ChatMessage, condenseID string) ([]engine.ChatMessage, bool) {
	found := false
	kept := make([]engine.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSummary && m.CondenseID == condenseID {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return msgs, false
	}
	return CleanupOrphans(kept), true
}

// LastSummaryIndex returns the index of the latest summary message in msgs, or -1.
func LastSummaryIndex(msgs []engine.ChatMessage) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsSummary {
			return i
		}
	}
	return -1
}

// MessagesSinceLastSummary returns the latest summary and everything after it, preceded
// by a synthetic user turn so the request opens with the user role. Without a summary the
// whole list is returned.
func MessagesSinceLastSummary(msgs []engine.ChatMessage) []engine.ChatMessage {
	idx := LastSummaryIndex(msgs)
	if idx < 0 {
		return msgs
	}

	lead := engine.ChatMessage{
		Role:    engine.RoleUser,
		Content: prompts.Latest(prompts.CondenseContinuationID),
		Ts:      msgs[0].Ts - 1,
	}
	out := make([]engine.ChatMessage, 0, len(msgs)-idx+1)
	out = append(out, lead)
	return append(out, msgs[idx:]...)
}
