// Package storage provides durable key/blob persistence for task state.
// Writes replace a whole value atomically; there are no partial updates.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// BlobStore is an atomic key to blob store.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// SQLiteFileName is the database file created under the storage directory.
const SQLiteFileName = "context.db"

// Open returns the store for backend rooted at dir.
func Open(ctx context.Context, backend, dir string) (BlobStore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(ctx, filepath.Join(dir, SQLiteFileName))
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %s or %s)", backend, BackendFile, BackendSQLite)
	}
}

// TaskKey joins a task id and a file name into a blob key.
func TaskKey(taskID, name string) string {
	return taskID + "/" + name
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("empty blob key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}
