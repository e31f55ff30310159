package prompts

import (
	"regexp"
	"strconv"
	"strings"
)

// PromptVersion is a dotted version such as "1.0.0".
type PromptVersion string

const (
	PromptV1 PromptVersion = "1.0.0"
	PromptV2 PromptVersion = "2.0.0"
)

// Prompt is one versioned prompt text. Content may hold {{name}} placeholders.
type Prompt struct {
	ID          string // e.g. "condense.summary"
	Version     PromptVersion
	Content     string
	Description string
	Deprecated  bool
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Placeholders returns the distinct variable names used by the prompt, in order of
// first appearance.
func (p *Prompt) Placeholders() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(p.Content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// less orders versions numerically per dotted component, so "10.0.0" > "2.0.0".
func (v PromptVersion) less(o PromptVersion) bool {
	a, b := strings.Split(string(v), "."), strings.Split(string(o), ".")
	for i := 0; i < len(a) || i < len(b); i++ {
		x, y := component(a, i), component(b, i)
		if x != y {
			return x < y
		}
	}
	return false
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
