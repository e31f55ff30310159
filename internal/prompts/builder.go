package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// PromptBuilder renders a registered prompt with its {{name}} variables.
type PromptBuilder struct {
	base      *Prompt
	fragments []string
	variables map[string]string
}

// NewPromptBuilder starts from the latest version of id.
func NewPromptBuilder(registry *PromptRegistry, id string) (*PromptBuilder, error) {
	base, err := registry.GetLatest(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}
	return &PromptBuilder{
		base:      base,
		fragments: []string{base.Content},
		variables: make(map[string]string),
	}, nil
}

// AddFragment appends a paragraph after the base prompt.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	b.fragments = append(b.fragments, text)
	return b
}

// SetVariable sets the value substituted for {{key}}.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build substitutes every variable. A placeholder of the base prompt left without a
// value is an error, so a half-rendered prompt never reaches the model.
func (b *PromptBuilder) Build() (string, error) {
	var missing []string
	for _, name := range b.base.Placeholders() {
		if _, ok := b.variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("prompt %s: missing variables %s", b.base.ID, strings.Join(missing, ", "))
	}

	result := strings.Join(b.fragments, "\n\n")
	return placeholderRe.ReplaceAllStringFunc(result, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := b.variables[name]; ok {
			return v
		}
		return m
	}), nil
}
