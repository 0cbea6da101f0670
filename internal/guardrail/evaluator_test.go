package guardrail

import (
	"context"
	"testing"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

func seedRun(store *memStore, niche string) domain.Run {
	run := domain.Run{
		ID:           "run-1",
		Niche:        niche,
		Geo:          "IT",
		Language:     "it",
		Capabilities: domain.CapabilityHybrid,
		Status:       domain.RunStatusRunning,
		Version:      1,
		StartedAt:    time.Now().UTC(),
		CreatedBy:    "tester",
		UpdatedAt:    time.Now().UTC(),
	}
	store.runs[run.ID] = run
	return run
}

func cleanSources(n int) []Source {
	sources := make([]Source, 0, n)
	for i := 0; i < n; i++ {
		sources = append(sources, Source{URL: "https://www.reddit.com/r/example", Snippet: "plain snippet"})
	}
	return sources
}

func TestEvaluateBlockedDomainHardStops(t *testing.T) {
	store := newMemStore()
	run := seedRun(store, "pet supplements")
	evaluator := NewEvaluator(store)

	sources := append(cleanSources(2), Source{URL: "https://facebook.com/some-page", Snippet: "clean"})
	verdict, err := evaluator.Evaluate(context.Background(), ActorInfo{Actor: "tester"}, BatchInput{
		RunID:            run.ID,
		Sources:          sources,
		EstimatedTokens:  1000,
		EstimatedCostUsd: 1.0,
		EnforceStop:      true,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Allowed {
		t.Fatalf("expected blocked verdict")
	}
	if len(verdict.ReasonCodes) != 1 || verdict.ReasonCodes[0] != ReasonSourcePolicyBlock {
		t.Fatalf("expected only SOURCE_POLICY_BLOCK, got %v", verdict.ReasonCodes)
	}

	got := store.runs[run.ID]
	if got.Status != domain.RunStatusBlocked {
		t.Fatalf("expected blocked run, got %s", got.Status)
	}
	if len(store.risks) != 1 {
		t.Fatalf("expected exactly one risk flag, got %d", len(store.risks))
	}
	flag := store.risks[0]
	if flag.Severity != domain.RiskSeverityHardStop || flag.Scope != domain.RiskScopeClaims {
		t.Fatalf("unexpected flag %+v", flag)
	}
	if len(store.audits) != 1 {
		t.Fatalf("expected one audit record, got %d", len(store.audits))
	}
	if store.audits[0].Action != "research_batch.blocked" {
		t.Fatalf("unexpected audit action %s", store.audits[0].Action)
	}
}

func TestEvaluateTokenBudgetBoundary(t *testing.T) {
	store := newMemStore()
	run := seedRun(store, "pet supplements")
	evaluator := NewEvaluator(store)

	verdict, err := evaluator.Evaluate(context.Background(), ActorInfo{Actor: "tester"}, BatchInput{
		RunID:            run.ID,
		Sources:          cleanSources(3),
		EstimatedTokens:  DefaultPolicy().MaxTokenBudgetPerBatch + 1,
		EstimatedCostUsd: 1.0,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Allowed {
		t.Fatalf("expected blocked verdict")
	}
	if len(verdict.ReasonCodes) != 1 || verdict.ReasonCodes[0] != ReasonTokenBudget {
		t.Fatalf("expected only TOKEN_BUDGET_EXCEEDED, got %v", verdict.ReasonCodes)
	}
	// Advisory call: run untouched, no risk flag, still audited.
	if store.runs[run.ID].Status != domain.RunStatusRunning {
		t.Fatalf("expected advisory verdict to leave run running")
	}
	if len(store.risks) != 0 {
		t.Fatalf("expected no risk flag, got %d", len(store.risks))
	}
	if len(store.audits) != 1 {
		t.Fatalf("expected one audit record, got %d", len(store.audits))
	}
}

func TestEvaluateAllowlistMissIsWarningOnly(t *testing.T) {
	store := newMemStore()
	run := seedRun(store, "pet supplements")
	evaluator := NewEvaluator(store)

	verdict, err := evaluator.Evaluate(context.Background(), ActorInfo{Actor: "tester"}, BatchInput{
		RunID:            run.ID,
		Sources:          []Source{{URL: "https://example.org/post", Snippet: "fine"}},
		EstimatedTokens:  10,
		EstimatedCostUsd: 0.1,
		EnforceStop:      true,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Allowed {
		t.Fatalf("expected allowed verdict, got reasons %v", verdict.ReasonCodes)
	}
	if len(verdict.WarningCodes) != 1 || verdict.WarningCodes[0] != WarningAllowlistMiss {
		t.Fatalf("expected SOURCE_ALLOWLIST_MISS warning, got %v", verdict.WarningCodes)
	}
	if store.audits[0].Action != "research_batch.allowed" {
		t.Fatalf("unexpected audit action %s", store.audits[0].Action)
	}
}

func TestEvaluateSensitiveClaimsOnlyInRegulatedNiches(t *testing.T) {
	sensitive := []Source{{URL: "https://reddit.com/r/health", Snippet: "this cura works with guaranteed results"}}

	store := newMemStore()
	run := seedRun(store, "pet toys")
	evaluator := NewEvaluator(store)
	verdict, err := evaluator.Evaluate(context.Background(), ActorInfo{Actor: "tester"}, BatchInput{
		RunID: run.ID, Sources: sensitive, EstimatedTokens: 10, EstimatedCostUsd: 0.1,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !verdict.Allowed {
		t.Fatalf("expected unregulated niche to skip claim scan, got %v", verdict.ReasonCodes)
	}

	store = newMemStore()
	run = seedRun(store, "salute e benessere")
	evaluator = NewEvaluator(store)
	verdict, err = evaluator.Evaluate(context.Background(), ActorInfo{Actor: "tester"}, BatchInput{
		RunID: run.ID, Sources: sensitive, EstimatedTokens: 10, EstimatedCostUsd: 0.1,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Allowed {
		t.Fatalf("expected regulated niche to flag sensitive claims")
	}
	found := false
	for _, code := range verdict.ReasonCodes {
		if code == ReasonSensitiveClaim {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SENSITIVE_CLAIM_DETECTED, got %v", verdict.ReasonCodes)
	}
}

func TestEvaluateRedactsAuditSample(t *testing.T) {
	store := newMemStore()
	run := seedRun(store, "pet supplements")
	evaluator := NewEvaluator(store)

	if _, err := evaluator.Evaluate(context.Background(), ActorInfo{Actor: "tester"}, BatchInput{
		RunID:            run.ID,
		Sources:          []Source{{URL: "https://reddit.com/r/a", Snippet: "reach me at jane.doe@example.com or +39 333 123 4567"}},
		EstimatedTokens:  10,
		EstimatedCostUsd: 0.1,
	}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	sample, ok := store.audits[0].Details["sample_sources"].([]map[string]string)
	if !ok || len(sample) != 1 {
		t.Fatalf("expected one sampled source, got %v", store.audits[0].Details["sample_sources"])
	}
	snippet := sample[0]["snippet"]
	if snippet != "reach me at [REDACTED_EMAIL] or [REDACTED_PHONE]" {
		t.Fatalf("unexpected redaction: %q", snippet)
	}
}
