package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/storage"
)

// Store persists one journal per task as a whole-value blob.
// Appends for the same task are serialized; different tasks never contend.
type Store struct {
	blobs  storage.BlobStore
	index  *Index
	hooks  engine.Hook
	logger *log.Logger
	retry  engine.RetryPolicy

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	cache    map[string]Journal
	useCache bool
}

// Option configures a Store.
type Option func(*Store)

// WithCache keeps loaded journals in memory until invalidated.
func WithCache() Option {
	return func(s *Store) { s.useCache = true }
}

// WithIndex indexes every appended entry for search.
func WithIndex(idx *Index) Option {
	return func(s *Store) { s.index = idx }
}

// WithHooks reports restores to h.
func WithHooks(h engine.Hook) Option {
	return func(s *Store) { s.hooks = h }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithRetryPolicy overrides the write retry policy.
func WithRetryPolicy(p engine.RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// NewStore creates a journal store on top of blobs.
func NewStore(blobs storage.BlobStore, opts ...Option) *Store {
	s := &Store{
		blobs:  blobs,
		hooks:  engine.NopHook{},
		logger: log.Default(),
		retry:  engine.DefaultRetryConfig().StoragePolicy,
		locks:  make(map[string]*sync.Mutex),
		cache:  make(map[string]Journal),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(taskID string) string {
	return storage.TaskKey(taskID, FileName)
}

func (s *Store) taskLock(taskID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

// Load reads the journal of a task. A missing blob is an empty journal.
// A version mismatch is logged and the journal is still returned.
func (s *Store) Load(ctx context.Context, taskID string) (Journal, error) {
	if s.useCache {
		s.mu.Lock()
		j, ok := s.cache[taskID]
		s.mu.Unlock()
		if ok {
			return j, nil
		}
	}

	data, err := s.blobs.Get(ctx, s.key(taskID))
	if errors.Is(err, storage.ErrNotFound) {
		return Empty(), nil
	}
	if err != nil {
		return Journal{}, fmt.Errorf("failed to read journal for task %s: %w", taskID, err)
	}

	if err := validate(data); err != nil {
		return Journal{}, fmt.Errorf("journal for task %s: %w", taskID, err)
	}

	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return Journal{}, fmt.Errorf("failed to decode journal for task %s: %w", taskID, err)
	}
	if j.Version != Version {
		s.logger.Printf("⚠️  journal for task %s has version %d, expected %d; reading anyway", taskID, j.Version, Version)
	}
	if j.Entries == nil {
		j.Entries = []Entry{}
	}

	s.remember(taskID, j)
	return j, nil
}

// Save overwrites the journal of a task.
func (s *Store) Save(ctx context.Context, taskID string, j Journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	_, err = engine.RetryWithPolicy(ctx, s.retry,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.blobs.Put(ctx, s.key(taskID), data)
		},
		classifyStorageError,
		func(attempt int, delay time.Duration, err error) {
			s.logger.Printf("⚠️  journal write for task %s failed, retry %d in %v: %v", taskID, attempt, delay, err)
		},
	)
	if err != nil {
		s.Invalidate(taskID)
		return fmt.Errorf("failed to write journal for task %s: %w", taskID, err)
	}

	s.remember(taskID, j)
	return nil
}

// Append adds e to the task's journal and persists the new value.
func (s *Store) Append(ctx context.Context, taskID string, e Entry) error {
	l := s.taskLock(taskID)
	l.Lock()
	defer l.Unlock()

	j, err := s.Load(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.Save(ctx, taskID, j.Append(e)); err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.IndexEntry(taskID, e); err != nil {
			s.logger.Printf("⚠️  failed to index journal entry for task %s: %v", taskID, err)
		}
	}
	return nil
}

// Restore loads the journal and brings targetTs back into current.
// Read failures are logged and reported as not found.
func (s *Store) Restore(ctx context.Context, taskID string, current []engine.ChatMessage, targetTs int64) ([]engine.ChatMessage, bool) {
	j, err := s.Load(ctx, taskID)
	if err != nil {
		s.logger.Printf("⚠️  restore task=%s ts=%d: %v", taskID, targetTs, err)
		return nil, false
	}
	out, ok := Restore(j, current, targetTs)
	if ok {
		s.hooks.OnRestore(ctx, taskID, targetTs, len(out)-len(current))
	}
	return out, ok
}

// Size returns the stored size of the task's journal in bytes, 0 when absent.
func (s *Store) Size(ctx context.Context, taskID string) (int64, error) {
	data, err := s.blobs.Get(ctx, s.key(taskID))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Invalidate drops the cached journal of a task.
func (s *Store) Invalidate(taskID string) {
	s.mu.Lock()
	delete(s.cache, taskID)
	s.mu.Unlock()
}

func (s *Store) remember(taskID string, j Journal) {
	if !s.useCache {
		return
	}
	s.mu.Lock()
	s.cache[taskID] = j
	s.mu.Unlock()
}

func classifyStorageError(err error) engine.RetryClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return engine.RetryClassNonRetryable
	}
	return engine.RetryClassRetryable
}
