package providers

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
)

// providerSpec describes how a provider is configured from the environment.
type providerSpec struct {
	prefix       string // env prefix, e.g. OPENAI for OPENAI_API_KEY
	defaultModel string
	baseURL      string // default base URL, empty for the SDK default
	localKey     string // placeholder key for local servers that ignore it
	anthropic    bool
}

var providerSpecs = map[string]providerSpec{
	"openai":    {prefix: "OPENAI", defaultModel: "gpt-4o-mini"},
	"anthropic": {prefix: "ANTHROPIC", defaultModel: "claude-3-5-sonnet-20241022", anthropic: true},
	// Kimi uses an OpenAI-compatible API via BytePlus ModelArk
	"kimi":     {prefix: "KIMI", defaultModel: "kimi-k2-250711", baseURL: "https://ark.ap-southeast.bytepluses.com/api/v3"},
	"gemini":   {prefix: "GEMINI", defaultModel: "gemini-1.5-flash", baseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	"lmstudio": {prefix: "LMSTUDIO", defaultModel: "local-model", baseURL: "http://localhost:1234/v1", localKey: "lm-studio"},
	"ollama":   {prefix: "OLLAMA", defaultModel: "llama3.1", baseURL: "http://localhost:11434/v1", localKey: "ollama"},
	"glm":      {prefix: "GLM", defaultModel: "glm-4-plus", baseURL: "https://open.bigmodel.cn/api/paas/v4"},
	"minimax":  {prefix: "MINIMAX", defaultModel: "abab6.5s-chat", baseURL: "https://api.minimax.chat/v1"},
	"deepseek": {prefix: "DEEPSEEK", defaultModel: "deepseek-chat", baseURL: "https://api.deepseek.com/v1"},
	"groq":     {prefix: "GROQ", defaultModel: "llama-3.1-70b-versatile", baseURL: "https://api.groq.com/openai/v1"},
}

// Providers lists the supported provider names.
func Providers() []string {
	names := make([]string, 0, len(providerSpecs))
	for name := range providerSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient creates the client for a provider from explicit settings.
// Empty model and baseURL fall back to the provider defaults.
func NewClient(provider, apiKey, model, baseURL string) (engine.LLMClient, error) {
	spec, ok := providerSpecs[strings.ToLower(provider)]
	if !ok {
		return nil, fmt.Errorf("unknown LLM_PROVIDER: %s (supported: %s)", provider, strings.Join(Providers(), ", "))
	}
	if model == "" {
		model = spec.defaultModel
	}
	if baseURL == "" {
		baseURL = spec.baseURL
	}
	if apiKey == "" {
		apiKey = spec.localKey
	}

	if spec.anthropic {
		return NewAnthropicClient(apiKey, model, baseURL)
	}
	return NewOpenAIClient(apiKey, model, baseURL)
}

// fromEnv reads <PREFIX>_API_KEY, <PREFIX>_MODEL and <PREFIX>_BASE_URL.
// modelOverride, when set, wins over <PREFIX>_MODEL.
func fromEnv(provider, modelOverride string, requireKey bool) (engine.LLMClient, string, error) {
	spec, ok := providerSpecs[strings.ToLower(provider)]
	if !ok {
		return nil, "", fmt.Errorf("unknown LLM_PROVIDER: %s (supported: %s)", provider, strings.Join(Providers(), ", "))
	}

	apiKey := os.Getenv(spec.prefix + "_API_KEY")
	if apiKey == "" && spec.localKey == "" && requireKey {
		return nil, "", fmt.Errorf("%s_API_KEY not set", spec.prefix)
	}

	model := modelOverride
	if model == "" {
		model = os.Getenv(spec.prefix + "_MODEL")
	}
	if model == "" {
		model = spec.defaultModel
	}

	client, err := NewClient(provider, apiKey, model, os.Getenv(spec.prefix+"_BASE_URL"))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	return client, model, nil
}

// NewLLMClientFromEnv creates the primary client from LLM_PROVIDER (default openai).
// It returns the client and its model name.
func NewLLMClientFromEnv(ctx context.Context) (engine.LLMClient, string, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	return fromEnv(provider, "", true)
}

// NewCondensingClient creates a dedicated condensing client. An empty provider
// means none is configured and returns a nil client. A missing API key is not an
// error here: the client then fails validation and condensation falls back to
// the primary client.
func NewCondensingClient(provider, model string) (engine.LLMClient, error) {
	if provider == "" {
		return nil, nil
	}
	client, _, err := fromEnv(provider, model, false)
	return client, err
}

// NewCondensingClientFromEnv reads CONDENSE_PROVIDER and CONDENSE_MODEL.
func NewCondensingClientFromEnv() (engine.LLMClient, error) {
	return NewCondensingClient(os.Getenv("CONDENSE_PROVIDER"), os.Getenv("CONDENSE_MODEL"))
}

// EnvPrefix returns the environment variable prefix of a provider, or "" when unknown.
func EnvPrefix(provider string) string {
	return providerSpecs[strings.ToLower(provider)].prefix
}
