package engine

import "time"

// CondenseConfig defines how the message log is condensed and truncated.
type CondenseConfig struct {
	KeepMessages             int     // Tail always preserved verbatim (default: 3)
	MinThresholdPercent      int     // Lowest accepted auto-condense threshold (default: 5)
	MaxThresholdPercent      int     // Highest accepted auto-condense threshold (default: 100)
	DefaultThresholdPercent  int     // Global auto-condense threshold (default: 100)
	TokenBufferFraction      float64 // Share of the window kept free (default: 0.10)
	ForcedTruncationFraction float64 // Used when the provider rejects the context (default: 0.75)
	DefaultTruncation        float64 // Used when condensation declines but the budget is blown (default: 0.5)
	MaxExpansionRetries      int     // Expansion re-invocations per summarize call (default: 5)
	DefaultReservedTokens    int     // Output reservation when the model max output is unknown (default: 8192)
}

// DefaultCondenseConfig returns the condensation defaults.
func DefaultCondenseConfig() CondenseConfig {
	return CondenseConfig{
		KeepMessages:             3,
		MinThresholdPercent:      5,
		MaxThresholdPercent:      100,
		DefaultThresholdPercent:  100,
		TokenBufferFraction:      0.10,
		ForcedTruncationFraction: 0.75,
		DefaultTruncation:        0.5,
		MaxExpansionRetries:      5,
		DefaultReservedTokens:    8192,
	}
}

// RetryConfig holds retry policies for different operation types.
type RetryConfig struct {
	LLMPolicy     RetryPolicy // Summary generation calls
	StoragePolicy RetryPolicy // Journal and log blob writes
}

// EngineConfig holds all engine configuration options.
type EngineConfig struct {
	RetryConfig    *RetryConfig
	CondenseConfig *CondenseConfig
}

// DefaultEngineConfig returns a default engine configuration.
func DefaultEngineConfig() EngineConfig {
	retryConfig := DefaultRetryConfig()
	condenseConfig := DefaultCondenseConfig()
	return EngineConfig{
		RetryConfig:    &retryConfig,
		CondenseConfig: &condenseConfig,
	}
}

// DefaultRetryConfig returns sensible default retry policies.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		LLMPolicy: RetryPolicy{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		StoragePolicy: RetryPolicy{
			MaxRetries:   2,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			Jitter:       false,
		},
	}
}
