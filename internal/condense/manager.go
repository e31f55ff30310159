package condense

import (
	"context"
	"log"

	"github.com/ChamsBouzaiene/dodo-context/internal/engine"
	"github.com/ChamsBouzaiene/dodo-context/internal/history"
)

// InheritThreshold in a profile threshold map means "use the global percent".
const InheritThreshold = -1

// ManageRequest describes the task state right before a model call.
type ManageRequest struct {
	Messages         []engine.ChatMessage
	TotalTokens      int // context size reported by the last model call
	ContextWindow    int
	MaxOutputTokens  int // 0 when unknown
	Client           engine.LLMClient
	CondensingClient engine.LLMClient
	SystemPrompt     string
	TaskID           string
	CustomPrompt     string

	AutoCondense          bool
	AutoCondensePercent   int
	ProfileThresholds     map[string]int
	ProfileID             string
	MinimumCondenseTokens int
}

// ManageResult is what the caller should send next.
type ManageResult struct {
	Messages          []engine.ChatMessage
	Summary           string
	Cost              float64
	PrevContextTokens int
	NewContextTokens  int
	CondenseID        string
	Error             string
	Err               error
	JournalErr        error
	Truncated         bool
	TruncationID      string
}

// Manager is consulted before every model call and keeps the log inside the budget.
type Manager struct {
	policy  *Policy
	counter engine.TokenCounter
	cfg     engine.CondenseConfig
	hooks   engine.Hook
	logger  *log.Logger
}

// NewManager creates a Manager around policy. The policy's counter, config and hooks
// are shared.
func NewManager(policy *Policy) *Manager {
	return &Manager{
		policy:  policy,
		counter: policy.counter,
		cfg:     policy.cfg,
		hooks:   policy.hooks,
		logger:  log.Default(),
	}
}

// AllowedTokens is the context size above which the log must shrink.
func (m *Manager) AllowedTokens(contextWindow, maxOutputTokens int) int {
	reserved := maxOutputTokens
	if reserved <= 0 {
		reserved = m.cfg.DefaultReservedTokens
	}
	return int(float64(contextWindow)*(1-m.cfg.TokenBufferFraction)) - reserved
}

// EffectiveThreshold returns the auto-condense percent for a profile.
func (m *Manager) EffectiveThreshold(req ManageRequest) int {
	global := req.AutoCondensePercent
	if global <= 0 {
		global = m.cfg.DefaultThresholdPercent
	}
	t, ok := req.ProfileThresholds[req.ProfileID]
	if !ok || t == InheritThreshold {
		return global
	}
	if t < m.cfg.MinThresholdPercent || t > m.cfg.MaxThresholdPercent {
		m.logger.Printf("⚠️  invalid condense threshold %d for profile %q, using global %d%%", t, req.ProfileID, global)
		return global
	}
	return t
}

// Manage condenses or truncates the log when it has outgrown the budget.
func (m *Manager) Manage(ctx context.Context, req ManageRequest) ManageResult {
	prev := req.TotalTokens
	visible := history.Effective(req.Messages)
	if len(visible) > 0 {
		last, err := m.counter.CountTokens(ctx, visible[len(visible)-1:])
		if err != nil {
			m.logger.Printf("⚠️  failed to count tokens of the last message: %v", err)
		}
		prev += last
	}

	allowed := m.AllowedTokens(req.ContextWindow, req.MaxOutputTokens)
	out := ManageResult{Messages: req.Messages, PrevContextTokens: prev}

	if req.AutoCondense && req.ContextWindow > 0 {
		percent := 100 * prev / req.ContextWindow
		if percent >= m.EffectiveThreshold(req) || prev > allowed {
			res := m.policy.Summarize(ctx, SummarizeRequest{
				Messages:              req.Messages,
				Client:                req.Client,
				CondensingClient:      req.CondensingClient,
				SystemPrompt:          req.SystemPrompt,
				TaskID:                req.TaskID,
				PrevContextTokens:     prev,
				IsAutomatic:           true,
				CustomPrompt:          req.CustomPrompt,
				MinimumCondenseTokens: req.MinimumCondenseTokens,
			})
			if res.Err == nil {
				return ManageResult{
					Messages:          res.Messages,
					Summary:           res.Summary,
					Cost:              res.Cost,
					PrevContextTokens: prev,
					NewContextTokens:  res.NewContextTokens,
					CondenseID:        res.CondenseID,
					JournalErr:        res.JournalErr,
				}
			}
			out.Error, out.Err, out.Cost = res.Error, res.Err, res.Cost
		}
	}

	if prev > allowed {
		tr := m.truncate(ctx, req.TaskID, req.Messages, m.cfg.DefaultTruncation)
		out.Messages = tr.Messages
		out.Truncated = tr.Removed > 0
		out.TruncationID = tr.TruncationID
	}
	return out
}

// Condense is the user triggered condensation. When prevContextTokens is 0 the current
// context is measured.
func (m *Manager) Condense(ctx context.Context, req SummarizeRequest) SummarizeResult {
	req.IsAutomatic = false
	if req.PrevContextTokens == 0 {
		msgs := append([]engine.ChatMessage{{Role: engine.RoleUser, Content: req.SystemPrompt}}, history.Effective(req.Messages)...)
		n, err := m.counter.CountTokens(ctx, msgs)
		if err != nil {
			m.logger.Printf("⚠️  failed to measure context: %v", err)
		}
		req.PrevContextTokens = n
	}
	return m.policy.Summarize(ctx, req)
}

// HandleContextWindowExceeded shrinks the log after the provider rejected it as too
// large, regardless of configuration.
func (m *Manager) HandleContextWindowExceeded(ctx context.Context, taskID string, msgs []engine.ChatMessage) history.TruncationResult {
	return m.truncate(ctx, taskID, msgs, m.cfg.ForcedTruncationFraction)
}

// Truncate applies sliding-window truncation at fraction. It is never journaled.
func (m *Manager) Truncate(ctx context.Context, taskID string, msgs []engine.ChatMessage, fraction float64) history.TruncationResult {
	return m.truncate(ctx, taskID, msgs, fraction)
}

func (m *Manager) truncate(ctx context.Context, taskID string, msgs []engine.ChatMessage, fraction float64) history.TruncationResult {
	tr := history.Truncate(msgs, fraction)
	if tr.Removed > 0 {
		m.hooks.OnTruncate(ctx, taskID, tr.TruncationID, tr.Removed)
	}
	return tr
}
