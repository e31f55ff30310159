package session

import (
	"time"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
)

// Blob names of a task.
const (
	HistoryFileName  = "api_conversation_history.json"
	MetadataFileName = "task_metadata.json"
)

// Task is the persisted metadata of one conversation.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model,omitempty"`
	ProfileID    string    `json:"profile_id,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	TotalTokens  int       `json:"total_tokens"` // context size reported by the last model call
	TotalCost    float64   `json:"total_cost"`   // includes condensing calls
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TaskMeta is a lightweight representation for listing.
type TaskMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskState is a task together with its stored message log.
type TaskState struct {
	Task     Task
	Messages []engine.ChatMessage
}
