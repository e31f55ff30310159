package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/storage"
)

// ErrTaskNotFound is returned when a task has no stored metadata.
var ErrTaskNotFound = errors.New("task not found")

// Store handles persistence of tasks and their message logs.
type Store struct {
	blobs storage.BlobStore
}

// NewStore creates a new task store on top of blobs.
func NewStore(blobs storage.BlobStore) *Store {
	return &Store{blobs: blobs}
}

// SaveTask persists task metadata, stamping UpdatedAt.
func (s *Store) SaveTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		return errors.New("task has no id")
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.blobs.Put(ctx, storage.TaskKey(task.ID, MetadataFileName), data); err != nil {
		return fmt.Errorf("failed to write task: %w", err)
	}
	return nil
}

// LoadTask retrieves task metadata.
func (s *Store) LoadTask(ctx context.Context, id string) (*Task, error) {
	data, err := s.blobs.Get(ctx, storage.TaskKey(id, MetadataFileName))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task: %w", err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// SaveMessages overwrites the stored message log of a task after validating it.
func (s *Store) SaveMessages(ctx context.Context, taskID string, msgs []engine.ChatMessage) error {
	if err := ValidateLog(msgs); err != nil {
		return err
	}
	if msgs == nil {
		msgs = []engine.ChatMessage{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	if err := s.blobs.Put(ctx, storage.TaskKey(taskID, HistoryFileName), data); err != nil {
		return fmt.Errorf("failed to write messages: %w", err)
	}
	return nil
}

// LoadMessages returns the stored message log of a task; a missing log is empty.
func (s *Store) LoadMessages(ctx context.Context, taskID string) ([]engine.ChatMessage, error) {
	data, err := s.blobs.Get(ctx, storage.TaskKey(taskID, HistoryFileName))
	if errors.Is(err, storage.ErrNotFound) {
		return []engine.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	var msgs []engine.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return msgs, nil
}

// Load returns a task and its message log.
func (s *Store) Load(ctx context.Context, id string) (*TaskState, error) {
	task, err := s.LoadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.LoadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TaskState{Task: *task, Messages: msgs}, nil
}

// Save persists a task and its message log.
func (s *Store) Save(ctx context.Context, st *TaskState) error {
	if err := s.SaveMessages(ctx, st.Task.ID, st.Messages); err != nil {
		return err
	}
	return s.SaveTask(ctx, &st.Task)
}

// List returns all tasks, sorted by UpdatedAt (newest first).
func (s *Store) List(ctx context.Context) ([]TaskMeta, error) {
	keys, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var tasks []TaskMeta
	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+MetadataFileName) {
			continue
		}
		id := strings.TrimSuffix(key, "/"+MetadataFileName)
		task, err := s.LoadTask(ctx, id)
		if err != nil {
			continue // Skip unreadable tasks
		}
		msgs, err := s.LoadMessages(ctx, id)
		if err != nil {
			continue
		}
		tasks = append(tasks, TaskMeta{
			ID:        task.ID,
			Title:     task.Title,
			Messages:  len(msgs),
			UpdatedAt: task.UpdatedAt,
		})
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
	})
	return tasks, nil
}

// ValidateLog checks every message, ts uniqueness and the ts ordering of conversation
// turns. Summaries and markers may carry a fresh ts out of order.
func ValidateLog(msgs []engine.ChatMessage) error {
	seen := make(map[int64]bool, len(msgs))
	last, hasLast := int64(0), false
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if seen[m.Ts] {
			return fmt.Errorf("message %d: duplicate ts %d", i, m.Ts)
		}
		seen[m.Ts] = true
		if m.IsSummary || m.IsTruncationMarker {
			continue
		}
		if hasLast && m.Ts < last {
			return fmt.Errorf("message %d: ts %d is before %d", i, m.Ts, last)
		}
		last, hasLast = m.Ts, true
	}
	return nil
}
