package engine

import (
	"context"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "empty",
			text: "",
			want: 0,
		},
		{
			name: "short word",
			text: "hello",
			want: 1, // 5 chars / 4 = 1
		},
		{
			name: "sentence",
			text: "hello world this is a test",
			want: 6, // 26 chars / 4 = 6 + whitespace/6 ~ 0 = 6
		},
		{
			name: "code snippet",
			text: "func main() { fmt.Println(\"hello\") }",
			want: 9, // 36 chars / 4 = 9 + whitespace/6 ~ 0 = 9
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTokens(tt.text)
			if got != tt.want {
				t.Errorf("EstimateTokens() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountTokensForMessages(t *testing.T) {
	tokenizer := DefaultTokenizer{}
	model := "test-model"

	tests := []struct {
		name     string
		messages []ChatMessage
		want     int
	}{
		{
			name:     "no messages",
			messages: nil,
			want:     0,
		},
		{
			name: "single message",
			messages: []ChatMessage{
				{Role: RoleUser, Content: "hello", Ts: 1},
			},
			// Role(user=4/4=1) + Content(hello=5/4=1) + Overhead(4) = 6
			want: 6,
		},
		{
			name: "pair",
			messages: []ChatMessage{
				{Role: RoleUser, Content: "hello", Ts: 1},
				{Role: RoleAssistant, Content: "hello", Ts: 2},
			},
			// 6 + Role(assistant=9/4=2) + 1 + 4 = 13
			want: 13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountTokensForMessages(tokenizer, tt.messages, model)
			if err != nil {
				t.Fatalf("CountTokensForMessages() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CountTokensForMessages() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimatingCounter(t *testing.T) {
	counter := NewEstimatingCounter("claude-3-5-sonnet")
	msgs := []ChatMessage{{Role: RoleUser, Content: "hello", Ts: 1}}

	got, err := counter.CountTokens(context.Background(), msgs)
	if err != nil {
		t.Fatalf("CountTokens error = %v", err)
	}
	if got != 6 {
		t.Errorf("CountTokens = %d, want 6", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := counter.CountTokens(ctx, msgs); err == nil {
		t.Error("CountTokens should fail on a cancelled context")
	}
}
