package history

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
)

// TruncationResult is the outcome of a sliding-window truncation.
type TruncationResult struct {
	Messages     []engine.ChatMessage
	TruncationID string // empty when nothing was removed
	Removed      int
}

// MarkerText is the content of the sentinel message left in place of hidden messages.
func MarkerText(hidden int) string {
	return fmt.Sprintf("[Sliding window truncation: %d messages hidden to reduce context]", hidden)
}

// Truncate hides the oldest share of the visible conversation, always keeping the
// first visible message. See TruncateWithID.
func Truncate(msgs []engine.ChatMessage, fraction float64) TruncationResult {
	return TruncateWithID(msgs, fraction, uuid.NewString())
}

// TruncateWithID is Truncate with a caller supplied truncation id.
//
// floor(N*fraction) visible messages after the anchor are hidden, rounded down to an even
// count so user/assistant pairs stay together. Hidden messages get truncationParent and a
// marker is inserted just before the first kept message, with a ts from SyntheticTs.
// The input is not modified.
func TruncateWithID(msgs []engine.ChatMessage, fraction float64, truncationID string) TruncationResult {
	stored := CleanupOrphans(msgs)
	condense, truncation := activeIDs(stored)

	visible := make([]int, 0, len(stored))
	for i, m := range stored {
		if !hiddenBy(m, condense, truncation) {
			visible = append(visible, i)
		}
	}

	n := len(visible)
	toRemove := removalCount(n, fraction)
	if toRemove == 0 {
		return TruncationResult{Messages: stored}
	}

	removed := make(map[int]bool, toRemove)
	for _, idx := range visible[1 : 1+toRemove] {
		removed[idx] = true
	}

	// Insert the marker before the first kept message, or at the end when nothing follows.
	insertAt := len(stored)
	if 1+toRemove < n {
		insertAt = visible[1+toRemove]
	}
	markerTs := SyntheticTs(stored, insertAt)

	marker := engine.ChatMessage{
		Role:               engine.RoleUser,
		Content:            MarkerText(toRemove),
		Ts:                 markerTs,
		IsTruncationMarker: true,
		TruncationID:       truncationID,
	}

	out := make([]engine.ChatMessage, 0, len(stored)+1)
	for i, m := range stored {
		if i == insertAt {
			out = append(out, marker)
		}
		if removed[i] {
			m.TruncationParent = truncationID
		}
		out = append(out, m)
	}
	if insertAt == len(stored) {
		out = append(out, marker)
	}

	return TruncationResult{Messages: out, TruncationID: truncationID, Removed: toRemove}
}

func removalCount(visible int, fraction float64) int {
	if visible < 2 || fraction <= 0 {
		return 0
	}
	k := int(math.Floor(float64(visible) * fraction))
	if k > visible-1 {
		k = visible - 1
	}
	return k - k%2
}

// SyntheticTs picks the ts of a summary or marker inserted before stored[at], or
// appended when at == len(stored). It is stored[at].Ts-1 when that ts is free and keeps
// the log in ts order. Otherwise it is one past the largest ts in the log, and the new
// message keeps its place by stored position.
func SyntheticTs(stored []engine.ChatMessage, at int) int64 {
	if len(stored) == 0 {
		return 0
	}
	if at < len(stored) {
		ts := stored[at].Ts - 1
		if (at == 0 || stored[at-1].Ts < ts) && !tsTaken(stored, ts) {
			return ts
		}
	}
	maxTs := stored[0].Ts
	for _, m := range stored[1:] {
		if m.Ts > maxTs {
			maxTs = m.Ts
		}
	}
	return maxTs + 1
}

func tsTaken(msgs []engine.ChatMessage, ts int64) bool {
	for _, m := range msgs {
		if m.Ts == ts {
			return true
		}
	}
	return false
}
