package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/pipeline"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// Service drives run lifecycle transitions. All mutations run inside a
// single storage transaction together with their audit record.
type Service struct {
	store   repo.Store
	service string
}

// AuditInfo carries request attribution into the audit trail.
type AuditInfo struct {
	Actor     string
	RequestID string
	UserAgent string
	IP        net.IP
}

// CreateRunInput is the immutable intake for a new run.
type CreateRunInput struct {
	Niche        string
	Geo          string
	Language     string
	Constraints  []string
	Capabilities string
	Seed         string
}

func New(store repo.Store, service string) *Service {
	if store == nil {
		return nil
	}
	return &Service{store: store, service: strings.TrimSpace(service)}
}

// CreateRun registers a draft run and seeds the full step topology.
// The first step starts running; everything downstream is pending. The
// run leaves draft when its first step output lands.
func (s *Service) CreateRun(ctx context.Context, info AuditInfo, input CreateRunInput) (domain.Run, error) {
	if s == nil || s.store == nil {
		return domain.Run{}, errors.New("orchestrate service not initialized")
	}
	now := time.Now().UTC()
	run := domain.Run{
		ID:             uuid.NewString(),
		Niche:          strings.TrimSpace(input.Niche),
		Geo:            strings.TrimSpace(input.Geo),
		Language:       strings.TrimSpace(input.Language),
		Constraints:    input.Constraints,
		Capabilities:   strings.TrimSpace(input.Capabilities),
		Status:         domain.RunStatusDraft,
		CurrentStepKey: pipeline.FirstStepKey(),
		Seed:           strings.TrimSpace(input.Seed),
		Version:        1,
		StartedAt:      now,
		CreatedBy:      strings.TrimSpace(info.Actor),
		UpdatedAt:      now,
	}
	if err := run.Validate(); err != nil {
		return domain.Run{}, err
	}

	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		if err := tx.Runs().Create(ctx, run); err != nil {
			return err
		}
		if err := seedSteps(ctx, tx.Steps(), run.ID, now); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "run.created",
			entityType: "run",
			entityID:   run.ID,
			runID:      run.ID,
			details: domain.Metadata{
				"niche":        run.Niche,
				"geo":          run.Geo,
				"language":     run.Language,
				"capabilities": run.Capabilities,
			},
		})
	})
	if err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// GetRun returns a run by id.
func (s *Service) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if s == nil || s.store == nil {
		return domain.Run{}, errors.New("orchestrate service not initialized")
	}
	return s.store.Runs().Get(ctx, id)
}

// ListRuns returns runs matching the filter, most recently updated first.
func (s *Service) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Runs().List(ctx, filter)
}

// LockAssumptions freezes the run's working assumptions. A second call
// fails with ErrInvalidState; the stored set is never overwritten.
func (s *Service) LockAssumptions(ctx context.Context, info AuditInfo, runID string, assumptions domain.Metadata) error {
	if s == nil || s.store == nil {
		return errors.New("orchestrate service not initialized")
	}
	if len(assumptions) == 0 {
		return fmt.Errorf("%w: assumptions are required", ErrPreconditionFailed)
	}
	return s.store.WithinTx(ctx, func(tx repo.Tx) error {
		run, err := tx.Runs().GetForUpdate(ctx, runID)
		if err != nil {
			return err
		}
		if run.LockedAssumptions != nil {
			return fmt.Errorf("%w: assumptions already locked", ErrInvalidState)
		}
		if err := tx.Runs().LockAssumptions(ctx, runID, assumptions); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "run.assumptions_locked",
			entityType: "run",
			entityID:   runID,
			runID:      runID,
			details:    domain.Metadata{"keys": assumptionKeys(assumptions)},
		})
	})
}

// CompleteRun moves a run into a terminal status. Closed runs are left
// untouched; a blocked run may still be abandoned as failed or, after
// review, marked completed.
func (s *Service) CompleteRun(ctx context.Context, info AuditInfo, runID, status string) error {
	if s == nil || s.store == nil {
		return errors.New("orchestrate service not initialized")
	}
	if !domain.IsTerminalRunStatus(status) {
		return fmt.Errorf("%w: %q is not a terminal run status", ErrInvalidState, status)
	}
	return s.store.WithinTx(ctx, func(tx repo.Tx) error {
		run, err := tx.Runs().GetForUpdate(ctx, runID)
		if err != nil {
			return err
		}
		if domain.IsClosedRunStatus(run.Status) {
			return fmt.Errorf("%w: run already %s", ErrInvalidState, run.Status)
		}
		var completedAt *time.Time
		if status == domain.RunStatusCompleted {
			now := time.Now().UTC()
			completedAt = &now
		}
		if err := tx.Runs().UpdateStatus(ctx, runID, status, completedAt); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "run." + status,
			entityType: "run",
			entityID:   runID,
			runID:      runID,
			details:    domain.Metadata{"from": run.Status},
		})
	})
}

type auditEntry struct {
	action     string
	entityType string
	entityID   string
	runID      string
	details    domain.Metadata
}

func (s *Service) appendAudit(ctx context.Context, tx repo.Tx, info AuditInfo, entry auditEntry) error {
	actor := strings.TrimSpace(info.Actor)
	if actor == "" {
		return errors.New("audit actor is required")
	}
	_, err := tx.Audit().Append(ctx, domain.AuditRecord{
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Action:     entry.action,
		EntityType: entry.entityType,
		EntityID:   entry.entityID,
		RunID:      entry.runID,
		RequestID:  info.RequestID,
		IP:         info.IP,
		UserAgent:  info.UserAgent,
		Details:    entry.details,
	})
	return err
}

func assumptionKeys(m domain.Metadata) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
