package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient implements engine.LLMClient for OpenAI and OpenAI-compatible APIs.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	baseURL   string
	apiKey    string
	maxTokens int
}

// NewOpenAIClient creates a new OpenAI client. baseURL selects an OpenAI-compatible API.
func NewOpenAIClient(apiKey, modelName, baseURL string) (*OpenAIClient, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(config),
		model:     modelName,
		baseURL:   baseURL,
		apiKey:    apiKey,
		maxTokens: defaultMaxTokens,
	}, nil
}

// ModelID implements engine.ModelDescriber.
func (c *OpenAIClient) ModelID() string { return c.model }

// Validate implements engine.ClientValidator.
func (c *OpenAIClient) Validate() error {
	if c.apiKey == "" {
		return errors.New("openai: API key not set")
	}
	if c.model == "" {
		return errors.New("openai: model not set")
	}
	return nil
}

// CreateMessage implements engine.LLMClient with streaming.
func (c *OpenAIClient) CreateMessage(ctx context.Context, systemPrompt string, messages []engine.ChatMessage) (<-chan engine.StreamEvent, <-chan error) {
	eventCh := make(chan engine.StreamEvent, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(eventCh)

		openaiMsgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
		if systemPrompt != "" {
			openaiMsgs = append(openaiMsgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			})
		}
		for _, t := range mergeTurns(messages) {
			role := openai.ChatMessageRoleUser
			if t.role == engine.RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			openaiMsgs = append(openaiMsgs, openai.ChatCompletionMessage{Role: role, Content: t.content})
		}

		req := openai.ChatCompletionRequest{
			Model:     c.model,
			Messages:  openaiMsgs,
			MaxTokens: c.maxTokens,
			Stream:    true,
			StreamOptions: &openai.StreamOptions{
				IncludeUsage: true, // Include usage in final chunk
			},
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			trySend(errCh, wrapStreamError(err))
			return
		}
		defer stream.Close()

		var usage *engine.StreamEvent
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				trySend(errCh, wrapStreamError(err))
				return
			}

			// Final chunk may carry usage without choices
			if response.Usage != nil && response.Usage.TotalTokens > 0 {
				ev := usageEvent(c.model, response.Usage.PromptTokens, response.Usage.CompletionTokens)
				usage = &ev
			}
			if len(response.Choices) == 0 {
				continue
			}
			if text := response.Choices[0].Delta.Content; text != "" {
				select {
				case eventCh <- engine.StreamEvent{Type: engine.StreamEventText, Text: text}:
				case <-ctx.Done():
					trySend(errCh, ctx.Err())
					return
				}
			}
		}

		if usage != nil {
			select {
			case eventCh <- *usage:
			case <-ctx.Done():
			}
		}
	}()

	return eventCh, errCh
}

// wrapStreamError classifies an SDK error, leaving cancellation untouched.
func wrapStreamError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return engine.WrapLLMError(err, apiErr.HTTPStatusCode, "")
	}
	httpStatus, retryAfter := extractErrorMetadata(err)
	return engine.WrapLLMError(err, httpStatus, retryAfter)
}

// extractErrorMetadata extracts HTTP status code and Retry-After header from an error.
// SDK errors only expose these through their message.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	errStr := err.Error()
	var httpStatus int
	var retryAfter string

	statuses := []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
		http.StatusPaymentRequired,
	}
	for _, code := range statuses {
		if strings.Contains(errStr, http.StatusText(code)) || strings.Contains(errStr, strconv.Itoa(code)) {
			httpStatus = code
			break
		}
	}

	lower := strings.ToLower(errStr)
	for _, marker := range []string{"retry-after", "retry after"} {
		if idx := strings.Index(lower, marker); idx != -1 {
			parts := strings.Fields(strings.TrimLeft(errStr[idx+len(marker):], ": "))
			if len(parts) > 0 {
				retryAfter = parts[0]
			}
			break
		}
	}

	return httpStatus, retryAfter
}
