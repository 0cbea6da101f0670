package orchestrate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// memStore is an in-memory repo.Store for state-machine tests. Locking
// is coarse; the tests only need serialized access.
type memStore struct {
	mu        sync.Mutex
	runs      map[string]domain.Run
	steps     map[string]domain.Step
	approvals map[string]domain.Approval
	policies  map[string]domain.GuardrailPolicy
	risks     map[string]domain.RiskFlag
	scores    []domain.IdeaScore
	artifacts map[string]domain.Artifact
	audits    []domain.AuditRecord
}

func newMemStore() *memStore {
	return &memStore{
		runs:      make(map[string]domain.Run),
		steps:     make(map[string]domain.Step),
		approvals: make(map[string]domain.Approval),
		policies:  make(map[string]domain.GuardrailPolicy),
		risks:     make(map[string]domain.RiskFlag),
		artifacts: make(map[string]domain.Artifact),
	}
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx repo.Tx) error) error {
	return fn(s)
}

func (s *memStore) Runs() repo.RunRepository           { return memRuns{s} }
func (s *memStore) Steps() repo.StepRepository         { return memSteps{s} }
func (s *memStore) Approvals() repo.ApprovalRepository { return memApprovals{s} }
func (s *memStore) Guardrails() repo.GuardrailRepository {
	return memGuardrails{s}
}
func (s *memStore) Risks() repo.RiskFlagRepository   { return memRisks{s} }
func (s *memStore) Scores() repo.ScoreRepository     { return memScores{s} }
func (s *memStore) Artifacts() repo.ArtifactRepository {
	return memArtifacts{s}
}
func (s *memStore) Audit() repo.AuditRepository { return memAudit{s} }

type memRuns struct{ s *memStore }

func (r memRuns) Create(_ context.Context, run domain.Run) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.runs[run.ID] = run
	return nil
}

func (r memRuns) Get(_ context.Context, id string) (domain.Run, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return domain.Run{}, repo.ErrNotFound
	}
	return run, nil
}

func (r memRuns) GetForUpdate(ctx context.Context, id string) (domain.Run, error) {
	return r.Get(ctx, id)
}

func (r memRuns) List(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Run, 0, len(r.s.runs))
	for _, run := range r.s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memRuns) UpdateStatus(_ context.Context, id, status string, completedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return repo.ErrNotFound
	}
	run.Status = status
	run.CompletedAt = completedAt
	run.UpdatedAt = time.Now().UTC()
	r.s.runs[id] = run
	return nil
}

func (r memRuns) UpdateProgress(_ context.Context, id, status, currentStepKey string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return repo.ErrNotFound
	}
	run.Status = status
	run.CurrentStepKey = currentStepKey
	run.UpdatedAt = time.Now().UTC()
	r.s.runs[id] = run
	return nil
}

func (r memRuns) LockAssumptions(_ context.Context, id string, assumptions domain.Metadata) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if run.LockedAssumptions != nil {
		return repo.ErrNotFound
	}
	run.LockedAssumptions = assumptions
	run.UpdatedAt = time.Now().UTC()
	r.s.runs[id] = run
	return nil
}

type memSteps struct{ s *memStore }

func (r memSteps) CreateBatch(_ context.Context, steps []domain.Step) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, step := range steps {
		r.s.steps[step.ID] = step
	}
	return nil
}

func (r memSteps) Get(_ context.Context, runID, stepKey string) (domain.Step, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, step := range r.s.steps {
		if step.RunID == runID && step.StepKey == stepKey {
			return step, nil
		}
	}
	return domain.Step{}, repo.ErrNotFound
}

func (r memSteps) GetForUpdate(ctx context.Context, runID, stepKey string) (domain.Step, error) {
	return r.Get(ctx, runID, stepKey)
}

func (r memSteps) ListByRun(_ context.Context, runID string) ([]domain.Step, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Step, 0)
	for _, step := range r.s.steps {
		if step.RunID == runID {
			out = append(out, step)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepKey < out[j].StepKey })
	return out, nil
}

func (r memSteps) CountByRun(_ context.Context, runID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, step := range r.s.steps {
		if step.RunID == runID {
			count++
		}
	}
	return count, nil
}

func (r memSteps) RecordOutput(_ context.Context, id, status string, output domain.Metadata, evidenceRefs []string, finishedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	step, ok := r.s.steps[id]
	if !ok {
		return repo.ErrNotFound
	}
	step.Status = status
	step.Output = output
	if evidenceRefs != nil {
		step.EvidenceRefs = evidenceRefs
	}
	if finishedAt != nil {
		step.FinishedAt = finishedAt
	}
	step.UpdatedAt = time.Now().UTC()
	r.s.steps[id] = step
	return nil
}

func (r memSteps) SetStatus(_ context.Context, id, status string, finishedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	step, ok := r.s.steps[id]
	if !ok {
		return repo.ErrNotFound
	}
	step.Status = status
	step.FinishedAt = finishedAt
	step.UpdatedAt = time.Now().UTC()
	r.s.steps[id] = step
	return nil
}

func (r memSteps) MarkRerun(_ context.Context, id string, startedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	step, ok := r.s.steps[id]
	if !ok {
		return repo.ErrNotFound
	}
	step.Status = domain.StepStatusRunning
	step.RetryCount++
	step.StartedAt = &startedAt
	step.FinishedAt = nil
	step.UpdatedAt = time.Now().UTC()
	r.s.steps[id] = step
	return nil
}

type memApprovals struct{ s *memStore }

func (r memApprovals) Create(_ context.Context, approval domain.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.approvals[approval.ID] = approval
	return nil
}

func (r memApprovals) Get(_ context.Context, id string) (domain.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	approval, ok := r.s.approvals[id]
	if !ok {
		return domain.Approval{}, repo.ErrNotFound
	}
	return approval, nil
}

func (r memApprovals) GetForUpdate(ctx context.Context, id string) (domain.Approval, error) {
	return r.Get(ctx, id)
}

func (r memApprovals) ListByRun(_ context.Context, runID string) ([]domain.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Approval, 0)
	for _, approval := range r.s.approvals {
		if approval.RunID == runID {
			out = append(out, approval)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memApprovals) ListPending(_ context.Context, limit int) ([]domain.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Approval, 0)
	for _, approval := range r.s.approvals {
		if approval.Status == domain.ApprovalStatusPending {
			out = append(out, approval)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memApprovals) LatestApproved(_ context.Context, runID, checkpointType string) (domain.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest domain.Approval
	found := false
	for _, approval := range r.s.approvals {
		if approval.RunID != runID || approval.CheckpointType != checkpointType {
			continue
		}
		if approval.Status != domain.ApprovalStatusApproved {
			continue
		}
		if !found || approval.UpdatedAt.After(latest.UpdatedAt) {
			latest = approval
			found = true
		}
	}
	if !found {
		return domain.Approval{}, repo.ErrNotFound
	}
	return latest, nil
}

func (r memApprovals) Decide(_ context.Context, id, decision, reviewer, note string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	approval, ok := r.s.approvals[id]
	if !ok || approval.Status != domain.ApprovalStatusPending {
		return repo.ErrNotFound
	}
	approval.Status = decision
	approval.ReviewedBy = reviewer
	approval.DecisionNote = note
	approval.UpdatedAt = time.Now().UTC()
	r.s.approvals[id] = approval
	return nil
}

type memGuardrails struct{ s *memStore }

func (r memGuardrails) GetGlobal(_ context.Context) (domain.GuardrailPolicy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	policy, ok := r.s.policies["global"]
	if !ok {
		return domain.GuardrailPolicy{}, repo.ErrNotFound
	}
	return policy, nil
}

func (r memGuardrails) GetForRun(_ context.Context, runID string) (domain.GuardrailPolicy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	policy, ok := r.s.policies["run:"+runID]
	if !ok {
		return domain.GuardrailPolicy{}, repo.ErrNotFound
	}
	return policy, nil
}

func (r memGuardrails) Upsert(_ context.Context, policy domain.GuardrailPolicy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := "global"
	if policy.Scope == domain.GuardrailScopeRun {
		key = "run:" + policy.RunID
	}
	r.s.policies[key] = policy
	return nil
}

type memRisks struct{ s *memStore }

func (r memRisks) Create(_ context.Context, flag domain.RiskFlag) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.risks[flag.ID] = flag
	return nil
}

func (r memRisks) Get(_ context.Context, id string) (domain.RiskFlag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	flag, ok := r.s.risks[id]
	if !ok {
		return domain.RiskFlag{}, repo.ErrNotFound
	}
	return flag, nil
}

func (r memRisks) ListByRun(_ context.Context, runID string) ([]domain.RiskFlag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.RiskFlag, 0)
	for _, flag := range r.s.risks {
		if flag.RunID == runID {
			out = append(out, flag)
		}
	}
	return out, nil
}

func (r memRisks) UpdateStatus(_ context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	flag, ok := r.s.risks[id]
	if !ok {
		return repo.ErrNotFound
	}
	flag.Status = status
	r.s.risks[id] = flag
	return nil
}

type memScores struct{ s *memStore }

func (r memScores) Create(_ context.Context, score domain.IdeaScore) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.scores = append(r.s.scores, score)
	return nil
}

func (r memScores) ListTopByRun(_ context.Context, runID string, limit int) ([]domain.IdeaScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.IdeaScore, 0)
	for _, score := range r.s.scores {
		if score.RunID == runID {
			out = append(out, score)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OverallScore > out[j].OverallScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memArtifacts struct{ s *memStore }

func (r memArtifacts) Create(_ context.Context, artifact domain.Artifact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.artifacts[artifact.ID] = artifact
	return nil
}

func (r memArtifacts) Get(_ context.Context, id string) (domain.Artifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	artifact, ok := r.s.artifacts[id]
	if !ok {
		return domain.Artifact{}, repo.ErrNotFound
	}
	return artifact, nil
}

func (r memArtifacts) ListByRun(_ context.Context, runID string) ([]domain.Artifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Artifact, 0)
	for _, artifact := range r.s.artifacts {
		if artifact.RunID == runID {
			out = append(out, artifact)
		}
	}
	return out, nil
}

func (r memArtifacts) NextVersion(_ context.Context, runID, artifactType string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := 0
	for _, artifact := range r.s.artifacts {
		if artifact.RunID == runID && artifact.ArtifactType == artifactType && artifact.Version > max {
			max = artifact.Version
		}
	}
	return max + 1, nil
}

type memAudit struct{ s *memStore }

func (r memAudit) Append(_ context.Context, record domain.AuditRecord) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record.RecordID = int64(len(r.s.audits) + 1)
	r.s.audits = append(r.s.audits, record)
	return record.RecordID, nil
}

func (r memAudit) ListByRun(_ context.Context, runID string, limit int) ([]domain.AuditRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditRecord, 0)
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if r.s.audits[i].RunID == runID {
			out = append(out, r.s.audits[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memAudit) ListByEntity(_ context.Context, entityType, entityID string, limit int) ([]domain.AuditRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditRecord, 0)
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if r.s.audits[i].EntityType == entityType && r.s.audits[i].EntityID == entityID {
			out = append(out, r.s.audits[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) auditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audits)
}
