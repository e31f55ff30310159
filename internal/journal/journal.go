// Package journal records what every committed condensation removed, so a removed
// message can be restored or a bad condense rolled back.
package journal

import (
	"sort"
	"time"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
)

// Version is the journal format version written by this package.
const Version = 1

// FileName is the per-task blob name of the journal.
const FileName = "condense_journal.json"

// EntryType tells whether a condensation was user triggered or automatic.
type EntryType string

const (
	EntryManual EntryType = "manual"
	EntryAuto   EntryType = "auto"
)

// TypeFor maps the isAutomatic flag of a condensation onto an entry type.
func TypeFor(isAutomatic bool) EntryType {
	if isAutomatic {
		return EntryAuto
	}
	return EntryManual
}

// Boundary locates a condensation inside the log it was applied to.
type Boundary struct {
	FirstKeptTs *int64 `json:"firstKeptTs,omitempty"`
	LastKeptTs  *int64 `json:"lastKeptTs,omitempty"`
	SummaryTs   *int64 `json:"summaryTs,omitempty"`
}

// Entry is one committed condensation.
type Entry struct {
	Removed    []engine.ChatMessage `json:"removed"`
	Boundary   Boundary             `json:"boundary"`
	CreatedAt  int64                `json:"createdAt"` // unix milliseconds
	Type       EntryType            `json:"type"`
	CondenseID string               `json:"condenseId,omitempty"`
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(removed []engine.ChatMessage, boundary Boundary, entryType EntryType, condenseID string) Entry {
	return Entry{
		Removed:    engine.CloneMessages(removed),
		Boundary:   boundary,
		CreatedAt:  time.Now().UnixMilli(),
		Type:       entryType,
		CondenseID: condenseID,
	}
}

// Journal is the versioned, append-only list of entries for a task.
// Values are never modified in place; Append returns a new Journal.
type Journal struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Empty returns a journal with no entries.
func Empty() Journal {
	return Journal{Version: Version, Entries: []Entry{}}
}

// Append returns a copy of j with e added at the end.
func (j Journal) Append(e Entry) Journal {
	entries := make([]Entry, len(j.Entries), len(j.Entries)+1)
	copy(entries, j.Entries)
	version := j.Version
	if version == 0 {
		version = Version
	}
	return Journal{Version: version, Entries: append(entries, e)}
}

// RemovedCount returns the number of messages recorded across all entries.
func (j Journal) RemovedCount() int {
	n := 0
	for _, e := range j.Entries {
		n += len(e.Removed)
	}
	return n
}

// Restore brings targetTs back into current from the journal.
//
// It returns false when the target is already present or no entry recorded it. Entries
// are walked newest to oldest and only an entry whose removed set holds the target
// contributes: its removed messages absent from current are merged back. Restored
// messages go before the first current message ordered after them (see
// engine.OrderKeys), which for a log sorted by ts is a plain sort. current is not modified.
func Restore(j Journal, current []engine.ChatMessage, targetTs int64) ([]engine.ChatMessage, bool) {
	present := make(map[int64]bool, len(current))
	for _, m := range current {
		present[m.Ts] = true
	}
	if present[targetTs] {
		return nil, false
	}

	var buffer []engine.ChatMessage
	for i := len(j.Entries) - 1; i >= 0 && buffer == nil; i-- {
		if !containsTs(j.Entries[i].Removed, targetTs) {
			continue
		}
		for _, m := range j.Entries[i].Removed {
			if !present[m.Ts] {
				present[m.Ts] = true
				buffer = append(buffer, m)
			}
		}
	}
	if buffer == nil {
		return nil, false
	}
	sort.SliceStable(buffer, func(a, b int) bool { return buffer[a].Ts < buffer[b].Ts })

	keys := engine.OrderKeys(current)
	merged := make([]engine.ChatMessage, 0, len(current)+len(buffer))
	for i, m := range current {
		for len(buffer) > 0 && 2*buffer[0].Ts < keys[i] {
			merged = append(merged, buffer[0])
			buffer = buffer[1:]
		}
		merged = append(merged, m)
	}
	return append(merged, buffer...), true
}

func containsTs(msgs []engine.ChatMessage, ts int64) bool {
	for _, m := range msgs {
		if m.Ts == ts {
			return true
		}
	}
	return false
}

// Int64 returns a pointer to v, for filling a Boundary.
func Int64(v int64) *int64 { return &v }
