package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	blobs, err := storage.NewFileStore(tmpDir)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	store := NewStore(blobs)

	state := &TaskState{
		Task: Task{ID: "task-1", Title: "Test Task", Model: "claude-3-5-sonnet", TotalTokens: 1200},
		Messages: []engine.ChatMessage{
			{Role: engine.RoleUser, Content: "Hello", Ts: 1000},
			{Role: engine.RoleAssistant, Content: "Hi there", Ts: 1100},
		},
	}

	// Test Save
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if state.Task.CreatedAt.IsZero() || state.Task.UpdatedAt.IsZero() {
		t.Error("Save should stamp CreatedAt and UpdatedAt")
	}

	// Verify the conversation file sits where other tools expect it
	if _, err := os.Stat(filepath.Join(tmpDir, "task-1", HistoryFileName)); err != nil {
		t.Errorf("Expected history file: %v", err)
	}

	// Test Load
	loaded, err := store.Load(ctx, "task-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Task.Title != "Test Task" {
		t.Errorf("Expected title %q, got %q", "Test Task", loaded.Task.Title)
	}
	if len(loaded.Messages) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(loaded.Messages))
	}

	// Test List
	time.Sleep(5 * time.Millisecond)
	if err := store.SaveTask(ctx, &Task{ID: "task-2", Title: "Newer"}); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 tasks in list, got %d", len(list))
	}
	if list[0].ID != "task-2" || list[1].Messages != 2 {
		t.Errorf("Unexpected list order or counts: %+v", list)
	}
}

func TestLoadMissing(t *testing.T) {
	ctx := context.Background()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(blobs)

	if _, err := store.LoadTask(ctx, "nope"); err == nil {
		t.Error("expected ErrTaskNotFound")
	}
	msgs, err := store.LoadMessages(ctx, "nope")
	if err != nil || len(msgs) != 0 {
		t.Errorf("missing log should be empty, got %v, %v", msgs, err)
	}
}

func TestValidateLog(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []engine.ChatMessage
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", []engine.ChatMessage{{Role: engine.RoleUser, Ts: 1}, {Role: engine.RoleAssistant, Ts: 2}}, false},
		{"duplicate ts", []engine.ChatMessage{{Role: engine.RoleUser, Ts: 1}, {Role: engine.RoleAssistant, Ts: 1}}, true},
		{"out of order", []engine.ChatMessage{{Role: engine.RoleUser, Ts: 2}, {Role: engine.RoleAssistant, Ts: 1}}, true},
		{"bad role", []engine.ChatMessage{{Role: "tool", Ts: 1}}, true},
		{"summary with fresh ts", []engine.ChatMessage{
			{Role: engine.RoleUser, Ts: 1},
			{Role: engine.RoleAssistant, Ts: 2, CondenseParent: "c"},
			{Role: engine.RoleAssistant, Ts: 5, IsSummary: true, CondenseID: "c"},
			{Role: engine.RoleUser, Ts: 3},
			{Role: engine.RoleAssistant, Ts: 4},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateLog(tt.msgs); (err != nil) != tt.wantErr {
				t.Errorf("ValidateLog() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
