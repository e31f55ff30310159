package main

import (
	"os"

	"github.com/ChamsBouzaiene/dodo-context/internal/config"
	"github.com/ChamsBouzaiene/dodo-context/internal/providers"
)

// applyConfigToEnv exports the saved provider settings so the provider factory sees
// them. Saved settings win over the shell environment and .env files.
func applyConfigToEnv(cfg *config.Config) {
	if cfg.LLMProvider != "" {
		os.Setenv("LLM_PROVIDER", cfg.LLMProvider)
	}
	prefix := providers.EnvPrefix(cfg.LLMProvider)
	if prefix == "" {
		return
	}
	if cfg.APIKey != "" {
		os.Setenv(prefix+"_API_KEY", cfg.APIKey)
	}
	if cfg.Model != "" {
		os.Setenv(prefix+"_MODEL", cfg.Model)
	}
	if cfg.BaseURL != "" {
		os.Setenv(prefix+"_BASE_URL", cfg.BaseURL)
	}
}
