package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]BlobStore {
	t.Helper()
	ctx := context.Background()

	fileStore, err := Open(ctx, BackendFile, t.TempDir())
	require.NoError(t, err)
	sqliteStore, err := Open(ctx, BackendSQLite, t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		fileStore.Close()
		sqliteStore.Close()
	})
	return map[string]BlobStore{"file": fileStore, "sqlite": sqliteStore}
}

func TestBlobStore(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "task-1/condense_journal.json")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "task-1/condense_journal.json", []byte(`{"version":1}`)))
			require.NoError(t, store.Put(ctx, "task-1/condense_journal.json", []byte(`{"version":1,"entries":[]}`)))
			require.NoError(t, store.Put(ctx, "task-2/api_conversation_history.json", []byte(`[]`)))

			got, err := store.Get(ctx, "task-1/condense_journal.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"version":1,"entries":[]}`, string(got))

			keys, err := store.List(ctx, "task-1/")
			require.NoError(t, err)
			assert.Equal(t, []string{"task-1/condense_journal.json"}, keys)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, store.Delete(ctx, "task-1/condense_journal.json"))
			require.NoError(t, store.Delete(ctx, "task-1/condense_journal.json"))
			_, err = store.Get(ctx, "task-1/condense_journal.json")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestInvalidKeys(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"", "/abs", "../escape", `a\b`} {
				assert.Error(t, store.Put(ctx, key, []byte("x")), "key %q", key)
			}
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(ctx, "t/blob.json", []byte("v")))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "t", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, filepath.Join(dir, "t", "blob.json"), store.Path("t/blob.json"))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "redis", t.TempDir())
	assert.Error(t, err)
}
