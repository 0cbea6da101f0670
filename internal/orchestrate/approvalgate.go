package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// RequestApproval opens a pending checkpoint review. The run pauses in
// awaiting_approval; when a step is linked, its status moves to
// needs_approval until the decision lands.
func (s *Service) RequestApproval(ctx context.Context, info AuditInfo, runID, stepKey, checkpointType string, payload domain.Metadata) (domain.Approval, error) {
	if s == nil || s.store == nil {
		return domain.Approval{}, errors.New("orchestrate service not initialized")
	}
	if !domain.IsValidCheckpointType(checkpointType) {
		return domain.Approval{}, fmt.Errorf("unsupported checkpoint type: %q", checkpointType)
	}

	now := time.Now().UTC()
	approval := domain.Approval{
		ID:             uuid.NewString(),
		RunID:          runID,
		CheckpointType: checkpointType,
		Status:         domain.ApprovalStatusPending,
		Payload:        payload,
		RequestedBy:    strings.TrimSpace(info.Actor),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		run, err := tx.Runs().GetForUpdate(ctx, runID)
		if err != nil {
			return err
		}
		if domain.IsClosedRunStatus(run.Status) {
			return fmt.Errorf("%w: run is %s", ErrInvalidState, run.Status)
		}

		currentStepKey := run.CurrentStepKey
		if strings.TrimSpace(stepKey) != "" {
			step, err := tx.Steps().GetForUpdate(ctx, runID, stepKey)
			if err != nil {
				return err
			}
			approval.StepID = step.ID
			currentStepKey = stepKey
			if step.Status != domain.StepStatusNeedsApproval {
				if err := tx.Steps().SetStatus(ctx, step.ID, domain.StepStatusNeedsApproval, nil); err != nil {
					return err
				}
			}
		}
		if err := approval.Validate(); err != nil {
			return err
		}
		if err := tx.Approvals().Create(ctx, approval); err != nil {
			return err
		}
		if err := tx.Runs().UpdateProgress(ctx, runID, domain.RunStatusAwaitingApproval, currentStepKey); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "approval.requested",
			entityType: "approval",
			entityID:   approval.ID,
			runID:      runID,
			details: domain.Metadata{
				"checkpoint_type": checkpointType,
				"step_key":        stepKey,
			},
		})
	})
	if err != nil {
		return domain.Approval{}, err
	}
	return approval, nil
}

// Decide freezes a pending approval. Approving completes the linked
// step and resumes the run; rejecting blocks both. A decision on an
// already-decided record fails with ErrAlreadyDecided and changes
// nothing.
func (s *Service) Decide(ctx context.Context, info AuditInfo, approvalID, decision, note string) (domain.Approval, error) {
	if s == nil || s.store == nil {
		return domain.Approval{}, errors.New("orchestrate service not initialized")
	}
	if !domain.IsValidDecision(decision) {
		return domain.Approval{}, fmt.Errorf("unsupported decision: %q", decision)
	}
	reviewer := strings.TrimSpace(info.Actor)
	if reviewer == "" {
		return domain.Approval{}, errors.New("reviewer is required")
	}

	var decided domain.Approval
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		approval, err := tx.Approvals().GetForUpdate(ctx, approvalID)
		if err != nil {
			return err
		}
		if approval.Status != domain.ApprovalStatusPending {
			return fmt.Errorf("%w: approval is %s", ErrAlreadyDecided, approval.Status)
		}
		if err := tx.Approvals().Decide(ctx, approvalID, decision, reviewer, note); err != nil {
			return err
		}

		stepStatus := domain.StepStatusCompleted
		runStatus := domain.RunStatusRunning
		if decision == domain.ApprovalStatusRejected {
			stepStatus = domain.StepStatusBlocked
			runStatus = domain.RunStatusBlocked
		}
		if approval.StepID != "" {
			now := time.Now().UTC()
			if err := tx.Steps().SetStatus(ctx, approval.StepID, stepStatus, &now); err != nil {
				return err
			}
		}
		run, err := tx.Runs().GetForUpdate(ctx, approval.RunID)
		if err != nil {
			return err
		}
		if err := tx.Runs().UpdateProgress(ctx, approval.RunID, runStatus, run.CurrentStepKey); err != nil {
			return err
		}

		decided = approval
		decided.Status = decision
		decided.ReviewedBy = reviewer
		decided.DecisionNote = note

		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "approval." + decision,
			entityType: "approval",
			entityID:   approval.ID,
			runID:      approval.RunID,
			details: domain.Metadata{
				"checkpoint_type": approval.CheckpointType,
				"decision_note":   note,
			},
		})
	})
	if err != nil {
		return domain.Approval{}, err
	}
	return decided, nil
}

// GetApproval returns one approval record.
func (s *Service) GetApproval(ctx context.Context, id string) (domain.Approval, error) {
	if s == nil || s.store == nil {
		return domain.Approval{}, errors.New("orchestrate service not initialized")
	}
	return s.store.Approvals().Get(ctx, id)
}

// ListApprovals returns a run's approvals, newest first.
func (s *Service) ListApprovals(ctx context.Context, runID string) ([]domain.Approval, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Approvals().ListByRun(ctx, runID)
}

// ListPendingApprovals returns the open review queue.
func (s *Service) ListPendingApprovals(ctx context.Context, limit int) ([]domain.Approval, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Approvals().ListPending(ctx, limit)
}

// LatestApproved returns the newest approved record for the checkpoint,
// or repo.ErrNotFound when the gate has never been approved.
func (s *Service) LatestApproved(ctx context.Context, runID, checkpointType string) (domain.Approval, error) {
	if s == nil || s.store == nil {
		return domain.Approval{}, errors.New("orchestrate service not initialized")
	}
	return s.store.Approvals().LatestApproved(ctx, runID, checkpointType)
}
