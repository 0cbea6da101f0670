package guardrail

import (
	"context"
	"sync"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// memStore implements the storage surface the evaluator touches. The
// step, approval, score, and artifact repositories are never exercised
// here and stay nil.
type memStore struct {
	mu       sync.Mutex
	runs     map[string]domain.Run
	policies map[string]domain.GuardrailPolicy
	risks    []domain.RiskFlag
	audits   []domain.AuditRecord
}

func newMemStore() *memStore {
	return &memStore{
		runs:     make(map[string]domain.Run),
		policies: make(map[string]domain.GuardrailPolicy),
	}
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx repo.Tx) error) error {
	return fn(s)
}

func (s *memStore) Runs() repo.RunRepository             { return memRuns{s} }
func (s *memStore) Steps() repo.StepRepository           { return nil }
func (s *memStore) Approvals() repo.ApprovalRepository   { return nil }
func (s *memStore) Guardrails() repo.GuardrailRepository { return memPolicies{s} }
func (s *memStore) Risks() repo.RiskFlagRepository       { return memRisks{s} }
func (s *memStore) Scores() repo.ScoreRepository         { return nil }
func (s *memStore) Artifacts() repo.ArtifactRepository   { return nil }
func (s *memStore) Audit() repo.AuditRepository          { return memAudit{s} }

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

func (r memRuns) List(_ context.Context, _ repo.RunFilter) ([]domain.Run, error) {
	return nil, nil
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
	run.LockedAssumptions = assumptions
	r.s.runs[id] = run
	return nil
}

type memPolicies struct{ s *memStore }

func (r memPolicies) GetGlobal(_ context.Context) (domain.GuardrailPolicy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	policy, ok := r.s.policies["global"]
	if !ok {
		return domain.GuardrailPolicy{}, repo.ErrNotFound
	}
	return policy, nil
}

func (r memPolicies) GetForRun(_ context.Context, runID string) (domain.GuardrailPolicy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	policy, ok := r.s.policies["run:"+runID]
	if !ok {
		return domain.GuardrailPolicy{}, repo.ErrNotFound
	}
	return policy, nil
}

func (r memPolicies) Upsert(_ context.Context, policy domain.GuardrailPolicy) error {
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
	r.s.risks = append(r.s.risks, flag)
	return nil
}

func (r memRisks) Get(_ context.Context, id string) (domain.RiskFlag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, flag := range r.s.risks {
		if flag.ID == id {
			return flag, nil
		}
	}
	return domain.RiskFlag{}, repo.ErrNotFound
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
	for i, flag := range r.s.risks {
		if flag.ID == id {
			r.s.risks[i].Status = status
			return nil
		}
	}
	return repo.ErrNotFound
}

type memAudit struct{ s *memStore }

func (r memAudit) Append(_ context.Context, record domain.AuditRecord) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record.RecordID = int64(len(r.s.audits) + 1)
	r.s.audits = append(r.s.audits, record)
	return record.RecordID, nil
}

func (r memAudit) ListByRun(_ context.Context, runID string, _ int) ([]domain.AuditRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditRecord, 0)
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if r.s.audits[i].RunID == runID {
			out = append(out, r.s.audits[i])
		}
	}
	return out, nil
}

func (r memAudit) ListByEntity(_ context.Context, entityType, entityID string, _ int) ([]domain.AuditRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditRecord, 0)
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if r.s.audits[i].EntityType == entityType && r.s.audits[i].EntityID == entityID {
			out = append(out, r.s.audits[i])
		}
	}
	return out, nil
}
