package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondensePromptsRegistered(t *testing.T) {
	for _, id := range []string{CondenseSummaryID, CondenseFinalRequestID, CondenseContinuationID, CondenseExpansionID} {
		t.Run(id, func(t *testing.T) {
			p, err := DefaultRegistry().GetLatest(id)
			require.NoError(t, err)
			assert.NotEmpty(t, p.Content)
		})
	}
	assert.Equal(t, "Please continue from the following summary:", Latest(CondenseContinuationID))
}

func TestBuildExpansion(t *testing.T) {
	got, err := BuildExpansion(120, 500)
	require.NoError(t, err)
	assert.Contains(t, got, "down to 120 tokens")
	assert.Contains(t, got, "at or above 500 tokens")
	assert.NotContains(t, got, "{{")
}

func TestRegistryVersions(t *testing.T) {
	r := NewPromptRegistry()
	require.NoError(t, r.Register(&Prompt{ID: "x", Version: "10.0.0", Content: "newest"}))
	require.NoError(t, r.Register(&Prompt{ID: "x", Version: PromptV2, Content: "new"}))
	require.NoError(t, r.Register(&Prompt{ID: "x", Version: PromptV1, Content: "old"}))

	assert.Equal(t, []PromptVersion{PromptV1, PromptV2, "10.0.0"}, r.Versions("x"))
	latest, err := r.GetLatest("x")
	require.NoError(t, err)
	assert.Equal(t, "newest", latest.Content)

	require.NoError(t, r.Register(&Prompt{ID: "x", Version: "10.0.0", Content: "newest", Deprecated: true}))
	latest, err = r.GetLatest("x")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.Content)

	_, err = r.Get("missing", PromptV1)
	assert.Error(t, err)
	_, err = r.GetLatest("missing")
	assert.Error(t, err)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := NewPromptRegistry()
	tests := []struct {
		name string
		p    *Prompt
	}{
		{"nil", nil},
		{"no id", &Prompt{Version: PromptV1, Content: "x"}},
		{"no version", &Prompt{ID: "x", Content: "x"}},
		{"blank", &Prompt{ID: "x", Version: PromptV1, Content: "  \n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.Register(tt.p))
		})
	}
	assert.Panics(t, func() { r.MustRegister(nil) })
}

func TestPromptBuilder(t *testing.T) {
	r := NewPromptRegistry()
	r.MustRegister(&Prompt{ID: "t", Version: PromptV1, Content: "hello {{name}}, {{ name }} again"})

	b, err := NewPromptBuilder(r, "t")
	require.NoError(t, err)
	out, err := b.AddFragment("bye {{name}}").SetVariable("name", "dodo").Build()
	require.NoError(t, err)
	assert.Equal(t, "hello dodo, dodo again\n\nbye dodo", out)

	b, err = NewPromptBuilder(r, "t")
	require.NoError(t, err)
	_, err = b.Build()
	assert.ErrorContains(t, err, "missing variables name")
}

func TestPlaceholders(t *testing.T) {
	p := &Prompt{Content: "{{b}} {{a}} {{b}}"}
	assert.Equal(t, []string{"b", "a"}, p.Placeholders())
}
