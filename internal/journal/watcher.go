package journal

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher evicts cached journals when their files change on disk, e.g. when another
// process condenses the same task.
type Watcher struct {
	root         string
	store        *Store
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	mu           sync.Mutex
	pending      map[string]bool // task ids
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewWatcher watches the task directories under root, the FileStore root of store.
func NewWatcher(root string, store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		root:         root,
		store:        store,
		watcher:      w,
		debounceTime: 200 * time.Millisecond,
		pending:      make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", w.root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(filepath.Join(w.root, e.Name()))
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) addDir(path string) {
	if err := w.watcher.Add(path); err != nil {
		log.Printf("⚠️  Failed to watch %s: %v", path, err)
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// A new task directory
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(w.root) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addDir(event.Name)
		}
		return
	}

	if filepath.Base(event.Name) != FileName {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		taskID := filepath.Base(filepath.Dir(event.Name))
		w.mu.Lock()
		w.pending[taskID] = true
		w.mu.Unlock()
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	tasks := w.pending
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for taskID := range tasks {
		w.store.Invalidate(taskID)
	}
}
