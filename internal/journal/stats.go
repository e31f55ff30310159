package journal

import (
	"context"
	"time"
)

// Stats describes the journal of one task.
type Stats struct {
	TaskID  string
	Version int
	Entries int
	Manual  int
	Auto    int
	Removed int
	Bytes   int64
	Oldest  time.Time // zero when there are no entries
	Newest  time.Time
}

// Stats summarizes the stored journal of a task.
func (s *Store) Stats(ctx context.Context, taskID string) (Stats, error) {
	j, err := s.Load(ctx, taskID)
	if err != nil {
		return Stats{}, err
	}
	size, err := s.Size(ctx, taskID)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		TaskID:  taskID,
		Version: j.Version,
		Entries: len(j.Entries),
		Removed: j.RemovedCount(),
		Bytes:   size,
	}
	for i, e := range j.Entries {
		switch e.Type {
		case EntryManual:
			st.Manual++
		case EntryAuto:
			st.Auto++
		}
		created := time.UnixMilli(e.CreatedAt)
		if i == 0 || created.Before(st.Oldest) {
			st.Oldest = created
		}
		if created.After(st.Newest) {
			st.Newest = created
		}
	}
	return st, nil
}
