package orchestrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/pipeline"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

func testInfo() AuditInfo {
	return AuditInfo{Actor: "tester", RequestID: "req-1", UserAgent: "tests"}
}

func newTestRun(t *testing.T) (*memStore, *Service, domain.Run) {
	t.Helper()
	store := newMemStore()
	service := New(store, "tests")
	if service == nil {
		t.Fatalf("expected service")
	}
	run, err := service.CreateRun(context.Background(), testInfo(), CreateRunInput{
		Niche:        "pet supplements",
		Geo:          "IT",
		Language:     "it",
		Capabilities: domain.CapabilityHybrid,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return store, service, run
}

func TestCreateRunSeedsFullTopology(t *testing.T) {
	store, service, run := newTestRun(t)

	if run.Status != domain.RunStatusDraft {
		t.Fatalf("expected draft run, got %s", run.Status)
	}
	if run.CurrentStepKey != pipeline.FirstStepKey() {
		t.Fatalf("expected current step %s, got %s", pipeline.FirstStepKey(), run.CurrentStepKey)
	}

	steps, err := service.ListSteps(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(steps) != len(pipeline.OrderedStepKeys()) {
		t.Fatalf("expected %d steps, got %d", len(pipeline.OrderedStepKeys()), len(steps))
	}
	for i, key := range pipeline.OrderedStepKeys() {
		if steps[i].StepKey != key {
			t.Fatalf("expected step %s at index %d, got %s", key, i, steps[i].StepKey)
		}
	}
	if steps[0].Status != domain.StepStatusRunning {
		t.Fatalf("expected first step running, got %s", steps[0].Status)
	}
	for _, step := range steps[1:] {
		if step.Status != domain.StepStatusPending {
			t.Fatalf("expected %s pending, got %s", step.StepKey, step.Status)
		}
	}
	if got := store.auditCount(); got != 1 {
		t.Fatalf("expected one audit record, got %d", got)
	}
}

func TestLockAssumptionsIsWriteOnce(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	assumptions := domain.Metadata{"audience": "dog owners", "price_band": "premium"}
	if err := service.LockAssumptions(ctx, testInfo(), run.ID, assumptions); err != nil {
		t.Fatalf("lock assumptions: %v", err)
	}
	err := service.LockAssumptions(ctx, testInfo(), run.ID, domain.Metadata{"audience": "cat owners"})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second lock, got %v", err)
	}

	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.LockedAssumptions["audience"] != "dog owners" {
		t.Fatalf("expected original assumptions retained, got %v", got.LockedAssumptions)
	}
}

func TestRecordStepOutputPausesRunForReview(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	step, err := service.RecordStepOutput(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, StepOutcome{
		Status: domain.StepStatusNeedsApproval,
		Output: domain.Metadata{"brief": "niche brief v1"},
	})
	if err != nil {
		t.Fatalf("record output: %v", err)
	}
	if step.Status != domain.StepStatusNeedsApproval {
		t.Fatalf("expected needs_approval, got %s", step.Status)
	}

	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusAwaitingApproval {
		t.Fatalf("expected awaiting_approval run, got %s", got.Status)
	}
	if got.CurrentStepKey != pipeline.StepNicheIntake {
		t.Fatalf("expected current step %s, got %s", pipeline.StepNicheIntake, got.CurrentStepKey)
	}
}

func TestRecordStepOutputResumesRun(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	if _, err := service.RecordStepOutput(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, StepOutcome{
		Status: domain.StepStatusCompleted,
		Output: domain.Metadata{"brief": "done"},
	}); err != nil {
		t.Fatalf("record output: %v", err)
	}
	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusRunning {
		t.Fatalf("expected running run, got %s", got.Status)
	}
}

func TestCanExecuteHonorsCheckpointGate(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	ok, reason, err := service.CanExecute(ctx, run.ID, pipeline.StepMarketSignals)
	if err != nil {
		t.Fatalf("can execute: %v", err)
	}
	if ok || reason == "" {
		t.Fatalf("expected gated step before approval, got ok=%v reason=%q", ok, reason)
	}

	approval, err := service.RequestApproval(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, domain.CheckpointNicheBrief, domain.Metadata{"brief": "v1"})
	if err != nil {
		t.Fatalf("request approval: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), approval.ID, domain.ApprovalStatusApproved, "looks good"); err != nil {
		t.Fatalf("decide: %v", err)
	}

	ok, reason, err = service.CanExecute(ctx, run.ID, pipeline.StepMarketSignals)
	if err != nil {
		t.Fatalf("can execute: %v", err)
	}
	if !ok {
		t.Fatalf("expected executable step after approval, got reason %q", reason)
	}
}

func TestRejectionDoesNotRevokeEarlierApproval(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	first, err := service.RequestApproval(ctx, testInfo(), run.ID, "", domain.CheckpointNicheBrief, nil)
	if err != nil {
		t.Fatalf("request approval: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), first.ID, domain.ApprovalStatusApproved, ""); err != nil {
		t.Fatalf("decide first: %v", err)
	}

	second, err := service.RequestApproval(ctx, testInfo(), run.ID, "", domain.CheckpointNicheBrief, nil)
	if err != nil {
		t.Fatalf("request second approval: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), second.ID, domain.ApprovalStatusRejected, "regression"); err != nil {
		t.Fatalf("decide second: %v", err)
	}

	latest, err := service.LatestApproved(ctx, run.ID, domain.CheckpointNicheBrief)
	if err != nil {
		t.Fatalf("latest approved: %v", err)
	}
	if latest.ID != first.ID {
		t.Fatalf("expected first approval to satisfy the gate, got %s", latest.ID)
	}

	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusBlocked {
		t.Fatalf("expected blocked run after rejection, got %s", got.Status)
	}
}

func TestDecideIsWriteOnce(t *testing.T) {
	store, service, run := newTestRun(t)
	ctx := context.Background()

	approval, err := service.RequestApproval(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, domain.CheckpointNicheBrief, nil)
	if err != nil {
		t.Fatalf("request approval: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), approval.ID, domain.ApprovalStatusApproved, "ok"); err != nil {
		t.Fatalf("decide: %v", err)
	}

	before := store.auditCount()
	_, err = service.Decide(ctx, testInfo(), approval.ID, domain.ApprovalStatusRejected, "changed my mind")
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
	if store.auditCount() != before {
		t.Fatalf("expected no audit record for rejected mutation")
	}

	got, err := service.GetApproval(ctx, approval.ID)
	if err != nil {
		t.Fatalf("get approval: %v", err)
	}
	if got.Status != domain.ApprovalStatusApproved {
		t.Fatalf("expected decision frozen as approved, got %s", got.Status)
	}
}

func TestDecideApprovedCompletesStepAndResumesRun(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	approval, err := service.RequestApproval(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, domain.CheckpointNicheBrief, nil)
	if err != nil {
		t.Fatalf("request approval: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), approval.ID, domain.ApprovalStatusApproved, ""); err != nil {
		t.Fatalf("decide: %v", err)
	}

	step, err := service.GetStep(ctx, run.ID, pipeline.StepNicheIntake)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if step.Status != domain.StepStatusCompleted {
		t.Fatalf("expected completed step, got %s", step.Status)
	}
	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusRunning {
		t.Fatalf("expected running run, got %s", got.Status)
	}
}

func TestRerunStepIncrementsRetryOnce(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	if _, err := service.RecordStepOutput(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, StepOutcome{
		Status: domain.StepStatusFailed,
	}); err != nil {
		t.Fatalf("record output: %v", err)
	}

	step, err := service.RerunStep(ctx, testInfo(), run.ID, pipeline.StepNicheIntake)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if step.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", step.RetryCount)
	}
	if step.Status != domain.StepStatusRunning {
		t.Fatalf("expected running step, got %s", step.Status)
	}
	if step.FinishedAt != nil {
		t.Fatalf("expected cleared finished_at")
	}

	_, err = service.RerunStep(ctx, testInfo(), run.ID, pipeline.StepNicheIntake)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on rerun of running step, got %v", err)
	}
	got, err := service.GetStep(ctx, run.ID, pipeline.StepNicheIntake)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if got.RetryCount != 1 {
		t.Fatalf("expected retry count unchanged, got %d", got.RetryCount)
	}
}

func rejectNicheBrief(t *testing.T, service *Service, runID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := service.RecordStepOutput(ctx, testInfo(), runID, pipeline.StepNicheIntake, StepOutcome{
		Status: domain.StepStatusNeedsApproval,
		Output: domain.Metadata{"brief": "v1"},
	}); err != nil {
		t.Fatalf("record output: %v", err)
	}
	approval, err := service.RequestApproval(ctx, testInfo(), runID, pipeline.StepNicheIntake, domain.CheckpointNicheBrief, nil)
	if err != nil {
		t.Fatalf("request approval: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), approval.ID, domain.ApprovalStatusRejected, "needs sharper niche"); err != nil {
		t.Fatalf("decide: %v", err)
	}
}

func TestRerunAfterRejectionRevivesBlockedRun(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	rejectNicheBrief(t, service, run.ID)

	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusBlocked {
		t.Fatalf("expected blocked run after rejection, got %s", got.Status)
	}

	step, err := service.RerunStep(ctx, testInfo(), run.ID, pipeline.StepNicheIntake)
	if err != nil {
		t.Fatalf("rerun on blocked run: %v", err)
	}
	if step.Status != domain.StepStatusRunning || step.RetryCount != 1 {
		t.Fatalf("expected running step with retry 1, got %s retry %d", step.Status, step.RetryCount)
	}

	got, err = service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusRunning {
		t.Fatalf("expected rerun to resume the run, got %s", got.Status)
	}
}

func TestBlockedRunAcceptsNewApprovalRequest(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	rejectNicheBrief(t, service, run.ID)

	approval, err := service.RequestApproval(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, domain.CheckpointNicheBrief, nil)
	if err != nil {
		t.Fatalf("request approval on blocked run: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), approval.ID, domain.ApprovalStatusApproved, "revised brief"); err != nil {
		t.Fatalf("decide: %v", err)
	}

	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusRunning {
		t.Fatalf("expected approval to resume the run, got %s", got.Status)
	}
	step, err := service.GetStep(ctx, run.ID, pipeline.StepNicheIntake)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if step.Status != domain.StepStatusCompleted {
		t.Fatalf("expected completed step, got %s", step.Status)
	}
}

func TestBlockedRunCanBeAbandoned(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	rejectNicheBrief(t, service, run.ID)

	if err := service.CompleteRun(ctx, testInfo(), run.ID, domain.RunStatusFailed); err != nil {
		t.Fatalf("abandon blocked run: %v", err)
	}
	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed run, got %s", got.Status)
	}

	_, err = service.RerunStep(ctx, testInfo(), run.ID, pipeline.StepNicheIntake)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on rerun of closed run, got %v", err)
	}
}

func TestCompleteRunRejectsNonTerminalStatus(t *testing.T) {
	_, service, run := newTestRun(t)
	ctx := context.Background()

	err := service.CompleteRun(ctx, testInfo(), run.ID, domain.RunStatusRunning)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	if err := service.CompleteRun(ctx, testInfo(), run.ID, domain.RunStatusCompleted); err != nil {
		t.Fatalf("complete run: %v", err)
	}
	got, err := service.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != domain.RunStatusCompleted || got.CompletedAt == nil {
		t.Fatalf("expected completed run with timestamp, got %s", got.Status)
	}

	err = service.CompleteRun(ctx, testInfo(), run.ID, domain.RunStatusFailed)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on re-complete, got %v", err)
	}
}

func TestEveryMutationAppendsOneAuditRecord(t *testing.T) {
	store, service, run := newTestRun(t)
	ctx := context.Background()

	if got := store.auditCount(); got != 1 {
		t.Fatalf("expected one record after create, got %d", got)
	}
	if err := service.LockAssumptions(ctx, testInfo(), run.ID, domain.Metadata{"a": 1}); err != nil {
		t.Fatalf("lock assumptions: %v", err)
	}
	if _, err := service.RecordStepOutput(ctx, testInfo(), run.ID, pipeline.StepNicheIntake, StepOutcome{Status: domain.StepStatusCompleted}); err != nil {
		t.Fatalf("record output: %v", err)
	}
	approval, err := service.RequestApproval(ctx, testInfo(), run.ID, "", domain.CheckpointNicheBrief, nil)
	if err != nil {
		t.Fatalf("request approval: %v", err)
	}
	if _, err := service.Decide(ctx, testInfo(), approval.ID, domain.ApprovalStatusApproved, ""); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got := store.auditCount(); got != 5 {
		t.Fatalf("expected five records, got %d", got)
	}

	records, err := store.Audit().ListByRun(ctx, run.ID, 0)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected five run-scoped records, got %d", len(records))
	}
	if records[0].Action != "approval.approved" {
		t.Fatalf("expected newest-first listing, got %s first", records[0].Action)
	}
}

func TestUpsertGuardrailRequiresExistingRun(t *testing.T) {
	ctx := context.Background()
	store, service, run := newTestRun(t)
	before := store.auditCount()

	sources := 10
	missing := domain.GuardrailPolicy{
		ID:                 "pol-1",
		Scope:              domain.GuardrailScopeRun,
		RunID:              "no-such-run",
		MaxSourcesPerBatch: &sources,
		UpdatedBy:          "tester",
		UpdatedAt:          time.Now().UTC(),
	}
	if err := service.UpsertGuardrail(ctx, testInfo(), missing); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing run, got %v", err)
	}
	if store.auditCount() != before {
		t.Fatalf("rejected upsert must not audit")
	}

	missing.RunID = run.ID
	if err := service.UpsertGuardrail(ctx, testInfo(), missing); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored, err := store.Guardrails().GetForRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get for run: %v", err)
	}
	if stored.MaxSourcesPerBatch == nil || *stored.MaxSourcesPerBatch != 10 {
		t.Fatalf("unexpected stored policy: %+v", stored)
	}
	if store.auditCount() != before+1 {
		t.Fatalf("expected one audit record for the upsert")
	}
}
