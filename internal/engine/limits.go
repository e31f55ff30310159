package engine

import "strings"

// ModelInfo describes the context budget and pricing of a model family.
// Prices are USD per million tokens.
type ModelInfo struct {
	ContextWindow   int
	MaxOutputTokens int
	InputPricePerM  float64
	OutputPricePerM float64
}

// GetModelInfo returns the context window, output reservation and pricing for a model.
// Unknown models get a conservative 16k window with no pricing.
func GetModelInfo(model string) ModelInfo {
	modelLower := strings.ToLower(model)

	switch {
	// Kimi K2 (200k context)
	case strings.Contains(modelLower, "kimi"):
		return ModelInfo{ContextWindow: 200000, MaxOutputTokens: 8192, InputPricePerM: 0.6, OutputPricePerM: 2.5}

	// GPT-4o mini must match before gpt-4o
	case strings.Contains(modelLower, "gpt-4o-mini"):
		return ModelInfo{ContextWindow: 128000, MaxOutputTokens: 16384, InputPricePerM: 0.15, OutputPricePerM: 0.6}

	case strings.Contains(modelLower, "gpt-4o"):
		return ModelInfo{ContextWindow: 128000, MaxOutputTokens: 16384, InputPricePerM: 2.5, OutputPricePerM: 10}

	case strings.Contains(modelLower, "haiku"):
		return ModelInfo{ContextWindow: 200000, MaxOutputTokens: 8192, InputPricePerM: 0.8, OutputPricePerM: 4}

	case strings.Contains(modelLower, "opus"):
		return ModelInfo{ContextWindow: 200000, MaxOutputTokens: 8192, InputPricePerM: 15, OutputPricePerM: 75}

	// Claude 3.x Sonnet and other Claude 3 family members
	case strings.Contains(modelLower, "claude-3") || strings.Contains(modelLower, "sonnet"):
		return ModelInfo{ContextWindow: 200000, MaxOutputTokens: 8192, InputPricePerM: 3, OutputPricePerM: 15}

	case strings.Contains(modelLower, "deepseek"):
		return ModelInfo{ContextWindow: 64000, MaxOutputTokens: 8192, InputPricePerM: 0.27, OutputPricePerM: 1.1}

	case strings.Contains(modelLower, "gemini"):
		return ModelInfo{ContextWindow: 1000000, MaxOutputTokens: 8192, InputPricePerM: 0.075, OutputPricePerM: 0.3}
	}

	return ModelInfo{ContextWindow: 16000}
}

// Cost returns the USD cost of a call with the given token counts.
func (m ModelInfo) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*m.InputPricePerM + float64(outputTokens)*m.OutputPricePerM) / 1_000_000
}
