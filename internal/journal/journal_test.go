package journal

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/storage"
)

func msg(ts int64, content string) engine.ChatMessage {
	role := engine.RoleUser
	if (ts/100)%2 == 1 {
		role = engine.RoleAssistant
	}
	return engine.ChatMessage{Role: role, Content: content, Ts: ts}
}

func tsOf(msgs []engine.ChatMessage) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.Ts
	}
	return out
}

// sampleJournal holds two nested condensations.
func sampleJournal() Journal {
	return Empty().
		Append(NewEntry([]engine.ChatMessage{msg(1100, "read the config"), msg(1200, "edit main.go")},
			Boundary{FirstKeptTs: Int64(1300), LastKeptTs: Int64(1600), SummaryTs: Int64(1299)}, EntryAuto, "c1")).
		Append(NewEntry([]engine.ChatMessage{msg(1300, "run the tests")},
			Boundary{FirstKeptTs: Int64(1500), LastKeptTs: Int64(1600), SummaryTs: Int64(1499)}, EntryManual, "c2"))
}

func TestRestore(t *testing.T) {
	j := Empty().Append(NewEntry(
		[]engine.ChatMessage{msg(1100, "a"), msg(1200, "b"), msg(1300, "c")},
		Boundary{FirstKeptTs: Int64(1600), LastKeptTs: Int64(1600), SummaryTs: Int64(1500)}, EntryAuto, "c1"))
	summary := engine.ChatMessage{Role: engine.RoleAssistant, Content: "sum", Ts: 1500, IsSummary: true, CondenseID: "c1"}
	current := []engine.ChatMessage{msg(1000, "start"), summary, msg(1600, "latest")}

	got, ok := Restore(j, current, 1200)
	require.True(t, ok)
	assert.Equal(t, []int64{1000, 1100, 1200, 1300, 1500, 1600}, tsOf(got))
	// input untouched
	assert.Equal(t, []int64{1000, 1500, 1600}, tsOf(current))
}

func TestRestoreUsesOnlyEntriesHoldingTarget(t *testing.T) {
	current := []engine.ChatMessage{msg(1000, "start"), msg(1500, "later"), msg(1600, "latest")}

	// c2 is newer but does not hold 1200, so 1300 stays out
	got, ok := Restore(sampleJournal(), current, 1200)
	require.True(t, ok)
	assert.Equal(t, []int64{1000, 1100, 1200, 1500, 1600}, tsOf(got))

	got, ok = Restore(sampleJournal(), current, 1300)
	require.True(t, ok)
	assert.Equal(t, []int64{1000, 1300, 1500, 1600}, tsOf(got))

	j := Empty().
		Append(NewEntry([]engine.ChatMessage{msg(1100, "a"), msg(1200, "b")}, Boundary{}, EntryAuto, "old")).
		Append(NewEntry([]engine.ChatMessage{msg(2000, "c")}, Boundary{}, EntryAuto, "new"))
	got, ok = Restore(j, []engine.ChatMessage{msg(1000, "start"), msg(2500, "end")}, 1200)
	require.True(t, ok)
	assert.Equal(t, []int64{1000, 1100, 1200, 2500}, tsOf(got))
}

func TestRestoreKeepsStoredPosition(t *testing.T) {
	// a summary with a fresh ts sits before the messages it precedes
	j := Empty().Append(NewEntry([]engine.ChatMessage{msg(2, "a"), msg(3, "b")}, Boundary{}, EntryAuto, "c1"))
	summary := engine.ChatMessage{Role: engine.RoleAssistant, Content: "sum", Ts: 8, IsSummary: true, CondenseID: "c1"}
	current := []engine.ChatMessage{msg(1, "start"), summary, msg(5, "x"), msg(6, "y")}

	got, ok := Restore(j, current, 3)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3, 8, 5, 6}, tsOf(got))
}

func TestRestoreNoOp(t *testing.T) {
	current := []engine.ChatMessage{msg(1000, "start"), msg(1200, "present")}

	got, ok := Restore(sampleJournal(), current, 1200)
	assert.False(t, ok, "target already present")
	assert.Nil(t, got)

	got, ok = Restore(sampleJournal(), current, 9999)
	assert.False(t, ok, "target never recorded")
	assert.Nil(t, got)

	got, ok = Restore(Empty(), current, 1100)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRestoreNeverDuplicates(t *testing.T) {
	// 1100 appears in two entries and 1000 is both current and journaled
	j := Empty().
		Append(NewEntry([]engine.ChatMessage{msg(1000, "a"), msg(1100, "b")}, Boundary{}, EntryAuto, "")).
		Append(NewEntry([]engine.ChatMessage{msg(1100, "b"), msg(1200, "c")}, Boundary{}, EntryAuto, ""))
	current := []engine.ChatMessage{msg(1000, "a"), msg(1300, "d")}

	got, ok := Restore(j, current, 1100)
	require.True(t, ok)
	seen := map[int64]int{}
	for _, m := range got {
		seen[m.Ts]++
	}
	for ts, n := range seen {
		assert.Equal(t, 1, n, "ts %d duplicated", ts)
	}
}

func TestAppendIsImmutable(t *testing.T) {
	j1 := Empty().Append(NewEntry(nil, Boundary{}, EntryAuto, ""))
	j2 := j1.Append(NewEntry(nil, Boundary{}, EntryManual, ""))

	assert.Len(t, j1.Entries, 1)
	assert.Len(t, j2.Entries, 2)
	assert.Equal(t, Version, j2.Version)
	assert.Equal(t, EntryManual, TypeFor(false))
	assert.Equal(t, EntryAuto, TypeFor(true))
}

func newBlobStores(t *testing.T) map[string]storage.BlobStore {
	t.Helper()
	ctx := context.Background()
	fileStore, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	sqliteStore, err := storage.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "context.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]storage.BlobStore{"file": fileStore, "sqlite": sqliteStore}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, blobs := range newBlobStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(blobs)
			want := sampleJournal()

			empty, err := s.Load(ctx, "task-1")
			require.NoError(t, err)
			assert.Empty(t, empty.Entries)

			for _, e := range want.Entries {
				require.NoError(t, s.Append(ctx, "task-1", e))
			}

			loaded, err := s.Load(ctx, "task-1")
			require.NoError(t, err)
			assert.Equal(t, want.Entries, loaded.Entries)
			assert.Equal(t, Version, loaded.Version)

			restored, ok := s.Restore(ctx, "task-1", []engine.ChatMessage{msg(1000, "start")}, 1100)
			require.True(t, ok)
			assert.Equal(t, []int64{1000, 1100, 1200}, tsOf(restored))

			// other tasks are independent
			other, err := s.Load(ctx, "task-2")
			require.NoError(t, err)
			assert.Empty(t, other.Entries)
		})
	}
}

func TestStoreVersionMismatchIsReadable(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, storage.TaskKey("t", FileName),
		[]byte(`{"version":2,"entries":[{"removed":[{"role":"user","content":"x","ts":5}],"boundary":{},"createdAt":1,"type":"auto"}]}`)))

	var buf bytes.Buffer
	s := NewStore(blobs, WithLogger(log.New(&buf, "", 0)))
	j, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, j.Version)
	assert.Len(t, j.Entries, 1)
	assert.Contains(t, buf.String(), "version 2")
}

func TestStoreBlockContent(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, storage.TaskKey("t", FileName),
		[]byte(`{"version":1,"entries":[{"removed":[{"role":"user","content":[{"type":"text","text":"see diagram"}],"ts":5}],"boundary":{},"createdAt":1,"type":"auto"}]}`)))

	j, err := NewStore(blobs).Load(ctx, "t")
	require.NoError(t, err)
	require.Len(t, j.Entries, 1)
	m := j.Entries[0].Removed[0]
	assert.Equal(t, "see diagram", m.Content)
	assert.JSONEq(t, `[{"type":"text","text":"see diagram"}]`, string(m.Blocks))
}

func TestStoreInvalidBlob(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, storage.TaskKey("t", FileName), []byte(`{"entries":[{"removed":"nope"}]}`)))

	var buf bytes.Buffer
	s := NewStore(blobs, WithLogger(log.New(&buf, "", 0)))
	_, err = s.Load(ctx, "t")
	assert.ErrorIs(t, err, ErrSchema)

	// a read failure is logged and restore reports not found
	got, ok := s.Restore(ctx, "t", nil, 5)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Contains(t, buf.String(), "restore task=t")
}

func TestStoreCacheAndWatcher(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blobs, err := storage.NewFileStore(dir)
	require.NoError(t, err)

	s := NewStore(blobs, WithCache())
	require.NoError(t, s.Append(ctx, "task-1", NewEntry([]engine.ChatMessage{msg(1100, "x")}, Boundary{}, EntryAuto, "")))

	w, err := NewWatcher(dir, s)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Another writer replaces the journal behind the cache's back
	other := NewStore(blobs)
	require.NoError(t, other.Save(ctx, "task-1", sampleJournal()))

	assert.Eventually(t, func() bool {
		j, err := s.Load(ctx, "task-1")
		return err == nil && len(j.Entries) == 2
	}, 3*time.Second, 50*time.Millisecond)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := NewStore(blobs)
	require.NoError(t, s.Save(ctx, "t", sampleJournal()))

	st, err := s.Stats(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.Manual)
	assert.Equal(t, 1, st.Auto)
	assert.Equal(t, 3, st.Removed)
	assert.Positive(t, st.Bytes)
	assert.False(t, st.Oldest.After(st.Newest))

	info, err := os.Stat(blobs.Path(storage.TaskKey("t", FileName)))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), st.Bytes)
}

func TestIndexSearch(t *testing.T) {
	idx, err := NewMemIndex()
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := NewStore(blobs, WithIndex(idx))
	for _, e := range sampleJournal().Entries {
		require.NoError(t, s.Append(ctx, "task-1", e))
	}
	require.NoError(t, idx.IndexJournal("task-2", Empty().Append(
		NewEntry([]engine.ChatMessage{msg(1200, "edit main.go elsewhere")}, Boundary{}, EntryAuto, "z"))))

	hits, err := idx.Search("task-1", "main.go", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1200), hits[0].Ts)
	assert.Equal(t, "c1", hits[0].CondenseID)

	hits, err = idx.Search("task-1", "tests", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1300), hits[0].Ts)
}

func TestOpenIndexOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.bleve")
	idx, err := OpenIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.IndexJournal("t", sampleJournal()))
	require.NoError(t, idx.Close())

	reopened, err := OpenIndex(path)
	require.NoError(t, err)
	defer reopened.Close()
	hits, err := reopened.Search("t", "config", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1100), hits[0].Ts)
}

type restoreHook struct {
	engine.NopHook
	targets  []int64
	restored []int
}

func (h *restoreHook) OnRestore(_ context.Context, _ string, targetTs int64, restored int) {
	h.targets = append(h.targets, targetTs)
	h.restored = append(h.restored, restored)
}

func TestStoreRestoreReportsHook(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	hook := &restoreHook{}
	s := NewStore(blobs, WithHooks(hook), WithLogger(log.New(&bytes.Buffer{}, "", 0)))
	require.NoError(t, s.Save(ctx, "t1", sampleJournal()))

	current := []engine.ChatMessage{msg(1000, "start"), msg(1500, "later"), msg(1600, "latest")}
	got, ok := s.Restore(ctx, "t1", current, 1200)
	require.True(t, ok)
	assert.Equal(t, []int64{1000, 1100, 1200, 1500, 1600}, tsOf(got))
	assert.Equal(t, []int64{1200}, hook.targets)
	assert.Equal(t, []int{2}, hook.restored)

	// A target that is already present is a no-op and is not reported
	_, ok = s.Restore(ctx, "t1", got, 1200)
	assert.False(t, ok)
	assert.Len(t, hook.targets, 1)
}
