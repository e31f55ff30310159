package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// defaultMaxTokens caps the length of a generated summary.
const defaultMaxTokens = 8192

// AnthropicClient implements engine.LLMClient by calling the Anthropic SDK directly.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	apiKey    string
	maxTokens int
}

// NewAnthropicClient creates a new Anthropic client. baseURL may be empty.
func NewAnthropicClient(apiKey, modelName, baseURL string) (*AnthropicClient, error) {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     modelName,
		apiKey:    apiKey,
		maxTokens: defaultMaxTokens,
	}, nil
}

// ModelID implements engine.ModelDescriber.
func (c *AnthropicClient) ModelID() string { return c.model }

// Validate implements engine.ClientValidator.
func (c *AnthropicClient) Validate() error {
	if c.apiKey == "" {
		return errors.New("anthropic: API key not set")
	}
	if c.model == "" {
		return errors.New("anthropic: model not set")
	}
	return nil
}

// CreateMessage implements engine.LLMClient with streaming.
// The SDK streams through callbacks, which are adapted to channels here.
func (c *AnthropicClient) CreateMessage(ctx context.Context, systemPrompt string, messages []engine.ChatMessage) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(eventCh)

		turns := mergeTurns(messages)
		if len(turns) == 0 {
			errCh <- engine.NewEngineError(errors.New("anthropic: no messages to send"), engine.RetryClassNonRetryable)
			return
		}

		anthropicMsgs := make([]anthropic.Message, 0, len(turns))
		for _, t := range turns {
			role := anthropic.RoleUser
			if t.role == engine.RoleAssistant {
				role = anthropic.RoleAssistant
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.Message{
				Role:    role,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(t.content)},
			})
		}

		req := anthropic.MessagesStreamRequest{
			MessagesRequest: anthropic.MessagesRequest{
				Model:     anthropic.Model(c.model),
				Messages:  anthropicMsgs,
				MaxTokens: c.maxTokens,
			},
		}
		if systemPrompt != "" {
			req.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: systemPrompt}}
		}

		req.OnError = func(errResp anthropic.ErrorResponse) {
			trySend(errCh, engine.WrapLLMError(fmt.Errorf("anthropic streaming error: %s", errResp.Error.Message), 0, ""))
		}

		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
				select {
				case eventCh <- engine.StreamEvent{Type: engine.StreamEventText, Text: *delta.Delta.Text}:
				case <-ctx.Done():
				}
			}
		}

		resp, err := c.client.CreateMessagesStream(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				trySend(errCh, err)
				return
			}
			httpStatus, retryAfter := extractErrorMetadata(err)
			trySend(errCh, engine.WrapLLMError(err, httpStatus, retryAfter))
			return
		}

		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			select {
			case eventCh <- usageEvent(c.model, resp.Usage.InputTokens, resp.Usage.OutputTokens):
			case <-ctx.Done():
			}
		}
	}()

	return eventCh, errCh
}
