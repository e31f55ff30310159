package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/storage"
)

// AppDir is the directory created under the user config dir.
const AppDir = "dodo-context"

// Config holds the user's persistent configuration preferences.
type Config struct {
	LLMProvider string `json:"llm_provider,omitempty"` // openai, anthropic, kimi, etc.
	APIKey      string `json:"api_key,omitempty"`      // The API key for the selected provider
	Model       string `json:"model,omitempty"`        // Default model name
	BaseURL     string `json:"base_url,omitempty"`     // Optional override for API base URL

	// Condensation
	AutoCondense         *bool          `json:"auto_condense,omitempty"`         // nil means enabled
	AutoCondensePercent  int            `json:"auto_condense_percent,omitempty"` // 0 means the default
	ProfileThresholds    map[string]int `json:"profile_thresholds,omitempty"`    // -1 inherits the global percent
	CustomCondensePrompt string         `json:"custom_condense_prompt,omitempty"`
	CondensingProvider   string         `json:"condensing_provider,omitempty"`
	CondensingModel      string         `json:"condensing_model,omitempty"`

	// Storage
	StorageBackend string `json:"storage_backend,omitempty"` // file or sqlite
	StorageDir     string `json:"storage_dir,omitempty"`     // defaults to <config dir>/tasks
}

// AutoCondenseEnabled reports whether automatic condensation is on.
func (c *Config) AutoCondenseEnabled() bool {
	return c.AutoCondense == nil || *c.AutoCondense
}

// Percent returns the global auto-condense percent, falling back to the default
// when unset or out of range.
func (c *Config) Percent() int {
	cc := engine.DefaultCondenseConfig()
	p := c.AutoCondensePercent
	if p == 0 {
		return cc.DefaultThresholdPercent
	}
	if p < cc.MinThresholdPercent || p > cc.MaxThresholdPercent {
		log.Printf("⚠️  auto_condense_percent %d outside [%d,%d], using %d", p, cc.MinThresholdPercent, cc.MaxThresholdPercent, cc.DefaultThresholdPercent)
		return cc.DefaultThresholdPercent
	}
	return p
}

// Validate checks values that cannot be repaired by falling back to a default.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "", storage.BackendFile, storage.BackendSQLite:
	default:
		return fmt.Errorf("invalid storage_backend %q", c.StorageBackend)
	}
	return nil
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return NewManagerAt(filepath.Join(configDir, AppDir)), nil
}

// NewManagerAt creates a manager rooted at dir.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// StorageDir returns the directory holding task data for cfg.
func (m *Manager) StorageDir(cfg *Config) string {
	if cfg.StorageDir != "" {
		return cfg.StorageDir
	}
	return filepath.Join(m.configDir, "tasks")
}

// Load reads the configuration from disk.
// If the file does not exist, it returns an empty Config and no error.
func (m *Manager) Load() (*Config, error) {
	path := m.GetConfigPath()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
func (m *Manager) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with 0600 permissions (read/write only by owner)
	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}
