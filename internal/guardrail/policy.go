package guardrail

import (
	"context"
	"errors"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// EffectivePolicy is the fully resolved policy a batch is scored
// against. Every field is concrete; resolution fills gaps from the
// system defaults.
type EffectivePolicy struct {
	AllowDomains           []string
	BlockDomains           []string
	MaxSourcesPerBatch     int
	MaxTokenBudgetPerBatch int
	MaxCostUsdPerBatch     float64
	RedactPII              bool
	RequiredCheckpoints    []string
	HardStopRules          []string
}

// DefaultPolicy returns the built-in system policy.
func DefaultPolicy() EffectivePolicy {
	return EffectivePolicy{
		AllowDomains: []string{
			"reddit.com", "youtube.com", "trustpilot.com",
			"g2.com", "capterra.com", "producthunt.com",
		},
		BlockDomains:           []string{"facebook.com", "instagram.com", "linkedin.com"},
		MaxSourcesPerBatch:     30,
		MaxTokenBudgetPerBatch: 120000,
		MaxCostUsdPerBatch:     7.5,
		RedactPII:              true,
		RequiredCheckpoints:    []string{domain.CheckpointPnlRiskGoNoGo},
		HardStopRules: []string{
			"Source policy violation",
			"Sensitive claim detected",
			"Budget exceeded",
		},
	}
}

// Resolver computes the effective policy for a run. It is a pure read
// path over stored partial records; no process-wide policy state
// exists.
type Resolver struct {
	policies repo.GuardrailRepository
}

func NewResolver(policies repo.GuardrailRepository) *Resolver {
	if policies == nil {
		return nil
	}
	return &Resolver{policies: policies}
}

// Resolve merges run-scope over global over defaults, one field at a
// time. Missing records are not errors; they simply contribute
// nothing.
func (r *Resolver) Resolve(ctx context.Context, runID string) (EffectivePolicy, error) {
	if r == nil || r.policies == nil {
		return EffectivePolicy{}, errors.New("guardrail resolver not initialized")
	}
	return resolveWith(ctx, r.policies, runID)
}

func resolveWith(ctx context.Context, policies repo.GuardrailRepository, runID string) (EffectivePolicy, error) {
	effective := DefaultPolicy()

	global, err := policies.GetGlobal(ctx)
	switch {
	case err == nil:
		applyOverride(&effective, global)
	case errors.Is(err, repo.ErrNotFound):
	default:
		return EffectivePolicy{}, err
	}

	if strings.TrimSpace(runID) != "" {
		run, err := policies.GetForRun(ctx, runID)
		switch {
		case err == nil:
			applyOverride(&effective, run)
		case errors.Is(err, repo.ErrNotFound):
		default:
			return EffectivePolicy{}, err
		}
	}
	return effective, nil
}

// applyOverride copies set fields of a partial record onto the
// effective policy. Nil fields fall through untouched.
func applyOverride(effective *EffectivePolicy, partial domain.GuardrailPolicy) {
	if partial.AllowDomains != nil {
		effective.AllowDomains = partial.AllowDomains
	}
	if partial.BlockDomains != nil {
		effective.BlockDomains = partial.BlockDomains
	}
	if partial.MaxSourcesPerBatch != nil {
		effective.MaxSourcesPerBatch = *partial.MaxSourcesPerBatch
	}
	if partial.MaxTokenBudgetPerBatch != nil {
		effective.MaxTokenBudgetPerBatch = *partial.MaxTokenBudgetPerBatch
	}
	if partial.MaxCostUsdPerBatch != nil {
		effective.MaxCostUsdPerBatch = *partial.MaxCostUsdPerBatch
	}
	if partial.RedactPII != nil {
		effective.RedactPII = *partial.RedactPII
	}
	if partial.RequiredCheckpoints != nil {
		effective.RequiredCheckpoints = partial.RequiredCheckpoints
	}
	if partial.HardStopRules != nil {
		effective.HardStopRules = partial.HardStopRules
	}
}
