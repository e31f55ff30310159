package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChamsBouzaiene/dodo-context/internal/config"
)

const (
	// DodoDir is the directory name for per-project configuration
	DodoDir = ".dodo"
	// PolicyFile is the YAML policy override, preferred over PolicyJSONFile
	PolicyFile = "context.yaml"
	// PolicyJSONFile is the JSON form of the policy override
	PolicyJSONFile = "context.json"
	// PromptFile holds a custom condensing prompt
	PromptFile = "condense_prompt.md"
)

// Policy overrides the user's condensation settings for one project.
// Zero values leave the user setting untouched.
type Policy struct {
	AutoCondense          *bool          `yaml:"auto_condense,omitempty" json:"auto_condense,omitempty"`
	AutoCondensePercent   int            `yaml:"auto_condense_percent,omitempty" json:"auto_condense_percent,omitempty"`
	ProfileThresholds     map[string]int `yaml:"profile_thresholds,omitempty" json:"profile_thresholds,omitempty"`
	MinimumCondenseTokens int            `yaml:"minimum_condense_tokens,omitempty" json:"minimum_condense_tokens,omitempty"`
	CondensingProvider    string         `yaml:"condensing_provider,omitempty" json:"condensing_provider,omitempty"`
	CondensingModel       string         `yaml:"condensing_model,omitempty" json:"condensing_model,omitempty"`
}

func dodoPath(repoRoot, name string) string {
	return filepath.Join(repoRoot, DodoDir, name)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// PolicyExists checks if a project policy file exists in either format.
func PolicyExists(repoRoot string) bool {
	return exists(dodoPath(repoRoot, PolicyFile)) || exists(dodoPath(repoRoot, PolicyJSONFile))
}

// LoadPolicy reads the project policy from disk.
// Returns nil and no error if no policy file exists.
func LoadPolicy(repoRoot string) (*Policy, error) {
	var p Policy

	if path := dodoPath(repoRoot, PolicyFile); exists(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read project policy: %w", err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse project policy: %w", err)
		}
		return &p, nil
	}

	if path := dodoPath(repoRoot, PolicyJSONFile); exists(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read project policy: %w", err)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse project policy: %w", err)
		}
		return &p, nil
	}

	return nil, nil
}

// SavePolicy writes the project policy as YAML.
// Creates the .dodo directory if it doesn't exist.
func SavePolicy(repoRoot string, p *Policy) error {
	if err := os.MkdirAll(filepath.Join(repoRoot, DodoDir), 0755); err != nil {
		return fmt.Errorf("failed to create .dodo directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project policy: %w", err)
	}

	if err := os.WriteFile(dodoPath(repoRoot, PolicyFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write project policy: %w", err)
	}

	return nil
}

// LoadCondensePrompt reads a custom condensing prompt from .dodo/condense_prompt.md.
// Returns empty string and no error if the file does not exist.
func LoadCondensePrompt(repoRoot string) (string, error) {
	path := dodoPath(repoRoot, PromptFile)

	// Check if file exists
	if !exists(path) {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read condense prompt: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// Apply returns a copy of cfg with the project overrides applied.
// A non-empty project prompt replaces the user's custom prompt.
func (p *Policy) Apply(cfg *config.Config, prompt string) *config.Config {
	out := *cfg
	if p != nil {
		if p.AutoCondense != nil {
			out.AutoCondense = p.AutoCondense
		}
		if p.AutoCondensePercent != 0 {
			out.AutoCondensePercent = p.AutoCondensePercent
		}
		if len(p.ProfileThresholds) > 0 {
			merged := make(map[string]int, len(cfg.ProfileThresholds)+len(p.ProfileThresholds))
			for k, v := range cfg.ProfileThresholds {
				merged[k] = v
			}
			for k, v := range p.ProfileThresholds {
				merged[k] = v
			}
			out.ProfileThresholds = merged
		}
		if p.CondensingProvider != "" {
			out.CondensingProvider = p.CondensingProvider
			out.CondensingModel = p.CondensingModel
		}
	}
	if prompt != "" {
		out.CustomCondensePrompt = prompt
	}
	return &out
}
