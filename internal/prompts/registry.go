package prompts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PromptRegistry holds every version of the engine's prompts.
type PromptRegistry struct {
	mu      sync.RWMutex
	prompts map[string]map[PromptVersion]*Prompt // ID -> Version -> Prompt
}

var (
	defaultRegistry     *PromptRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry the condense prompts live in.
func DefaultRegistry() *PromptRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewPromptRegistry()
	})
	return defaultRegistry
}

// NewPromptRegistry creates an empty registry.
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{prompts: make(map[string]map[PromptVersion]*Prompt)}
}

// Register adds a prompt version. Re-registering an existing version replaces it,
// which is how a version gets deprecated.
func (r *PromptRegistry) Register(p *Prompt) error {
	switch {
	case p == nil:
		return errors.New("nil prompt")
	case p.ID == "":
		return errors.New("prompt has no id")
	case p.Version == "":
		return fmt.Errorf("prompt %s has no version", p.ID)
	case strings.TrimSpace(p.Content) == "":
		return fmt.Errorf("prompt %s@%s is empty", p.ID, p.Version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prompts[p.ID] == nil {
		r.prompts[p.ID] = make(map[PromptVersion]*Prompt)
	}
	r.prompts[p.ID][p.Version] = p
	return nil
}

// MustRegister is Register for prompts compiled into the binary.
func (r *PromptRegistry) MustRegister(p *Prompt) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get retrieves a specific version of a prompt.
func (r *PromptRegistry) Get(id string, version PromptVersion) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.prompts[id][version]
	if !ok {
		return nil, fmt.Errorf("prompt %s version %s not found", id, version)
	}
	return p, nil
}

// GetLatest returns the highest non-deprecated version, or the highest version when
// every version is deprecated.
func (r *PromptRegistry) GetLatest(id string) (*Prompt, error) {
	versions := r.Versions(id)
	if len(versions) == 0 {
		return nil, fmt.Errorf("prompt not found: %s", id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.prompts[id]
	for i := len(versions) - 1; i >= 0; i-- {
		if p := all[versions[i]]; !p.Deprecated {
			return p, nil
		}
	}
	return all[versions[len(versions)-1]], nil
}

// Versions returns the registered versions of id, oldest first.
func (r *PromptRegistry) Versions(id string) []PromptVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PromptVersion, 0, len(r.prompts[id]))
	for v := range r.prompts[id] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
