package guardrail

import (
	"context"
	"testing"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestResolveFieldLevelMerge(t *testing.T) {
	store := newMemStore()
	store.policies["global"] = domain.GuardrailPolicy{
		ID:                 "g-1",
		Scope:              domain.GuardrailScopeGlobal,
		MaxCostUsdPerBatch: floatPtr(7.5),
		MaxSourcesPerBatch: intPtr(30),
		UpdatedBy:          "ops",
		UpdatedAt:          time.Now().UTC(),
	}
	store.policies["run:run-1"] = domain.GuardrailPolicy{
		ID:                 "r-1",
		Scope:              domain.GuardrailScopeRun,
		RunID:              "run-1",
		MaxCostUsdPerBatch: floatPtr(2.0),
		UpdatedBy:          "ops",
		UpdatedAt:          time.Now().UTC(),
	}

	resolver := NewResolver(memPolicies{store})
	effective, err := resolver.Resolve(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if effective.MaxCostUsdPerBatch != 2.0 {
		t.Fatalf("expected run-scope cost override 2.0, got %v", effective.MaxCostUsdPerBatch)
	}
	if effective.MaxSourcesPerBatch != 30 {
		t.Fatalf("expected global source cap 30, got %d", effective.MaxSourcesPerBatch)
	}
	// Fields unset at both scopes fall through to system defaults.
	if effective.MaxTokenBudgetPerBatch != DefaultPolicy().MaxTokenBudgetPerBatch {
		t.Fatalf("expected default token budget, got %d", effective.MaxTokenBudgetPerBatch)
	}
	if len(effective.AllowDomains) != len(DefaultPolicy().AllowDomains) {
		t.Fatalf("expected default allow list, got %v", effective.AllowDomains)
	}
}

func TestResolveWithoutRecordsYieldsDefaults(t *testing.T) {
	store := newMemStore()
	resolver := NewResolver(memPolicies{store})

	effective, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defaults := DefaultPolicy()
	if effective.MaxSourcesPerBatch != defaults.MaxSourcesPerBatch ||
		effective.MaxTokenBudgetPerBatch != defaults.MaxTokenBudgetPerBatch ||
		effective.MaxCostUsdPerBatch != defaults.MaxCostUsdPerBatch ||
		effective.RedactPII != defaults.RedactPII {
		t.Fatalf("expected pure defaults, got %+v", effective)
	}
}

func TestResolveRunScopeDisablesRedaction(t *testing.T) {
	store := newMemStore()
	store.policies["run:run-1"] = domain.GuardrailPolicy{
		ID:        "r-1",
		Scope:     domain.GuardrailScopeRun,
		RunID:     "run-1",
		RedactPII: boolPtr(false),
		UpdatedBy: "ops",
		UpdatedAt: time.Now().UTC(),
	}
	resolver := NewResolver(memPolicies{store})
	effective, err := resolver.Resolve(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if effective.RedactPII {
		t.Fatalf("expected redaction disabled by run override")
	}
}
