package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Guardrail policy scopes. At most one global record exists; at most
// one run-scoped record exists per run.
const (
	GuardrailScopeGlobal = "global"
	GuardrailScopeRun    = "run"
)

// GuardrailPolicy is a stored partial policy. Nil fields mean "not set
// at this scope" and fall through during the effective-policy merge.
type GuardrailPolicy struct {
	ID                     string
	Scope                  string
	RunID                  string
	AllowDomains           []string
	BlockDomains           []string
	MaxSourcesPerBatch     *int
	MaxTokenBudgetPerBatch *int
	MaxCostUsdPerBatch     *float64
	RedactPII              *bool
	RequiredCheckpoints    []string
	HardStopRules          []string
	UpdatedBy              string
	UpdatedAt              time.Time
}

func (p GuardrailPolicy) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("policy id is required")
	}
	switch p.Scope {
	case GuardrailScopeGlobal:
		if strings.TrimSpace(p.RunID) != "" {
			return errors.New("global policy must not reference a run")
		}
	case GuardrailScopeRun:
		if strings.TrimSpace(p.RunID) == "" {
			return errors.New("run policy requires a run id")
		}
	default:
		return fmt.Errorf("unsupported guardrail scope: %q", p.Scope)
	}
	if p.MaxSourcesPerBatch != nil && *p.MaxSourcesPerBatch < 1 {
		return errors.New("max sources per batch must be >= 1")
	}
	if p.MaxTokenBudgetPerBatch != nil && *p.MaxTokenBudgetPerBatch < 1 {
		return errors.New("max token budget per batch must be >= 1")
	}
	if p.MaxCostUsdPerBatch != nil && *p.MaxCostUsdPerBatch <= 0 {
		return errors.New("max cost per batch must be positive")
	}
	for _, checkpoint := range p.RequiredCheckpoints {
		if !IsValidCheckpointType(checkpoint) {
			return fmt.Errorf("unsupported required checkpoint: %q", checkpoint)
		}
	}
	if strings.TrimSpace(p.UpdatedBy) == "" {
		return errors.New("updated_by is required")
	}
	return nil
}
