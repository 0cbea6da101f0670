package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/pipeline"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// seedSteps inserts the full topology for a new run. Seeding a run that
// already has steps is an error; the topology is created exactly once.
func seedSteps(ctx context.Context, steps repo.StepRepository, runID string, now time.Time) error {
	count, err := steps.CountByRun(ctx, runID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: run %s already has steps", ErrInvalidState, runID)
	}
	keys := pipeline.OrderedStepKeys()
	batch := make([]domain.Step, 0, len(keys))
	for i, key := range keys {
		step := domain.Step{
			ID:        uuid.NewString(),
			RunID:     runID,
			StepKey:   key,
			Status:    domain.StepStatusPending,
			UpdatedAt: now,
		}
		if i == 0 {
			step.Status = domain.StepStatusRunning
			started := now
			step.StartedAt = &started
		}
		batch = append(batch, step)
	}
	return steps.CreateBatch(ctx, batch)
}

// CanExecute reports whether a step may execute right now. A step is
// executable when it exists, is not waiting on a review of its own
// output, and its required checkpoint holds an approved record. The
// returned reason is empty when executable.
func (s *Service) CanExecute(ctx context.Context, runID, stepKey string) (bool, string, error) {
	if s == nil || s.store == nil {
		return false, "", errors.New("orchestrate service not initialized")
	}
	if !pipeline.IsKnownStepKey(stepKey) {
		return false, "", fmt.Errorf("unknown step key: %q", stepKey)
	}
	run, err := s.store.Runs().Get(ctx, runID)
	if err != nil {
		return false, "", err
	}
	if domain.IsClosedRunStatus(run.Status) {
		return false, fmt.Sprintf("run is %s", run.Status), nil
	}
	step, err := s.store.Steps().Get(ctx, runID, stepKey)
	if err != nil {
		return false, "", err
	}
	if step.Status == domain.StepStatusNeedsApproval {
		return false, "step output is awaiting review", nil
	}
	if step.Status == domain.StepStatusBlocked {
		return false, "step is blocked", nil
	}
	required, _ := pipeline.RequiredCheckpoint(stepKey)
	if required == "" {
		return true, "", nil
	}
	_, err = s.store.Approvals().LatestApproved(ctx, runID, required)
	if errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Sprintf("checkpoint %s not approved", required), nil
	}
	if err != nil {
		return false, "", err
	}
	return true, "", nil
}

// StepOutcome is the result of one step execution.
type StepOutcome struct {
	Status       string
	Output       domain.Metadata
	EvidenceRefs []string
}

// RecordStepOutput persists a step result and moves the run forward.
// When the step lands in needs_approval the run pauses in
// awaiting_approval; any other non-terminal outcome keeps it running.
func (s *Service) RecordStepOutput(ctx context.Context, info AuditInfo, runID, stepKey string, outcome StepOutcome) (domain.Step, error) {
	if s == nil || s.store == nil {
		return domain.Step{}, errors.New("orchestrate service not initialized")
	}
	if !domain.IsValidStepOutcome(outcome.Status) {
		return domain.Step{}, fmt.Errorf("%w: %q is not a step outcome", ErrInvalidState, outcome.Status)
	}

	var updated domain.Step
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		run, err := tx.Runs().GetForUpdate(ctx, runID)
		if err != nil {
			return err
		}
		if domain.IsClosedRunStatus(run.Status) {
			return fmt.Errorf("%w: run is %s", ErrInvalidState, run.Status)
		}
		step, err := tx.Steps().GetForUpdate(ctx, runID, stepKey)
		if err != nil {
			return err
		}

		var finishedAt *time.Time
		if outcome.Status != domain.StepStatusRunning {
			now := time.Now().UTC()
			finishedAt = &now
		}
		if err := tx.Steps().RecordOutput(ctx, step.ID, outcome.Status, outcome.Output, outcome.EvidenceRefs, finishedAt); err != nil {
			return err
		}

		runStatus := domain.RunStatusRunning
		if outcome.Status == domain.StepStatusNeedsApproval {
			runStatus = domain.RunStatusAwaitingApproval
		}
		if err := tx.Runs().UpdateProgress(ctx, runID, runStatus, stepKey); err != nil {
			return err
		}

		updated = step
		updated.Status = outcome.Status
		updated.Output = outcome.Output
		if len(outcome.EvidenceRefs) > 0 {
			updated.EvidenceRefs = outcome.EvidenceRefs
		}
		updated.FinishedAt = finishedAt

		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "step.output_recorded",
			entityType: "step",
			entityID:   step.ID,
			runID:      runID,
			details: domain.Metadata{
				"step_key": stepKey,
				"status":   outcome.Status,
			},
		})
	})
	if err != nil {
		return domain.Step{}, err
	}
	return updated, nil
}

// RerunStep resets a finished step for another attempt. The retry
// counter only moves forward; prior output is kept until the new
// attempt overwrites it. A rerun on a blocked run resumes the run,
// so a rejected checkpoint is recoverable.
func (s *Service) RerunStep(ctx context.Context, info AuditInfo, runID, stepKey string) (domain.Step, error) {
	if s == nil || s.store == nil {
		return domain.Step{}, errors.New("orchestrate service not initialized")
	}
	var updated domain.Step
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		run, err := tx.Runs().GetForUpdate(ctx, runID)
		if err != nil {
			return err
		}
		if domain.IsClosedRunStatus(run.Status) {
			return fmt.Errorf("%w: run is %s", ErrInvalidState, run.Status)
		}
		step, err := tx.Steps().GetForUpdate(ctx, runID, stepKey)
		if err != nil {
			return err
		}
		if step.Status == domain.StepStatusRunning {
			return fmt.Errorf("%w: step is already running", ErrInvalidState)
		}
		now := time.Now().UTC()
		if err := tx.Steps().MarkRerun(ctx, step.ID, now); err != nil {
			return err
		}
		if err := tx.Runs().UpdateProgress(ctx, runID, domain.RunStatusRunning, stepKey); err != nil {
			return err
		}

		updated = step
		updated.Status = domain.StepStatusRunning
		updated.RetryCount = step.RetryCount + 1
		updated.StartedAt = &now
		updated.FinishedAt = nil

		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "step.rerun",
			entityType: "step",
			entityID:   step.ID,
			runID:      runID,
			details: domain.Metadata{
				"step_key":    stepKey,
				"retry_count": step.RetryCount + 1,
			},
		})
	})
	if err != nil {
		return domain.Step{}, err
	}
	return updated, nil
}

// ListSteps returns the run's steps in pipeline order.
func (s *Service) ListSteps(ctx context.Context, runID string) ([]domain.Step, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	steps, err := s.store.Steps().ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]domain.Step, len(steps))
	for _, step := range steps {
		byKey[step.StepKey] = step
	}
	ordered := make([]domain.Step, 0, len(steps))
	for _, key := range pipeline.OrderedStepKeys() {
		if step, ok := byKey[key]; ok {
			ordered = append(ordered, step)
			delete(byKey, key)
		}
	}
	// Unknown keys should not exist, but never drop rows if they do.
	if len(byKey) > 0 {
		for _, step := range steps {
			if _, ok := byKey[step.StepKey]; ok {
				ordered = append(ordered, step)
			}
		}
	}
	return ordered, nil
}

// GetStep returns one step of a run.
func (s *Service) GetStep(ctx context.Context, runID, stepKey string) (domain.Step, error) {
	if s == nil || s.store == nil {
		return domain.Step{}, errors.New("orchestrate service not initialized")
	}
	if strings.TrimSpace(stepKey) == "" {
		return domain.Step{}, errors.New("step key is required")
	}
	return s.store.Steps().Get(ctx, runID, stepKey)
}
