package repo

import (
	"context"
	"errors"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

type RunFilter struct {
	Status string
	Limit  int
}

type AuditFilter struct {
	RunID      string
	EntityType string
	EntityID   string
	Limit      int
}

// RunRepository manages venture run state.
type RunRepository interface {
	Create(ctx context.Context, run domain.Run) error
	Get(ctx context.Context, id string) (domain.Run, error)
	// GetForUpdate locks the run row for the duration of the enclosing
	// transaction.
	GetForUpdate(ctx context.Context, id string) (domain.Run, error)
	List(ctx context.Context, filter RunFilter) ([]domain.Run, error)
	UpdateStatus(ctx context.Context, id, status string, completedAt *time.Time) error
	UpdateProgress(ctx context.Context, id, status, currentStepKey string) error
	LockAssumptions(ctx context.Context, id string, assumptions domain.Metadata) error
}

// StepRepository manages pipeline steps, unique per (run, stepKey).
type StepRepository interface {
	CreateBatch(ctx context.Context, steps []domain.Step) error
	Get(ctx context.Context, runID, stepKey string) (domain.Step, error)
	GetForUpdate(ctx context.Context, runID, stepKey string) (domain.Step, error)
	ListByRun(ctx context.Context, runID string) ([]domain.Step, error)
	CountByRun(ctx context.Context, runID string) (int, error)
	RecordOutput(ctx context.Context, id, status string, output domain.Metadata, evidenceRefs []string, finishedAt *time.Time) error
	SetStatus(ctx context.Context, id, status string, finishedAt *time.Time) error
	// MarkRerun increments the retry counter, resets the step to
	// running, and clears finishedAt. Prior output is retained.
	MarkRerun(ctx context.Context, id string, startedAt time.Time) error
}

// ApprovalRepository manages write-once checkpoint approvals.
type ApprovalRepository interface {
	Create(ctx context.Context, approval domain.Approval) error
	Get(ctx context.Context, id string) (domain.Approval, error)
	GetForUpdate(ctx context.Context, id string) (domain.Approval, error)
	ListByRun(ctx context.Context, runID string) ([]domain.Approval, error)
	ListPending(ctx context.Context, limit int) ([]domain.Approval, error)
	// LatestApproved returns the most recent approved record of the
	// checkpoint type for the run, or ErrNotFound when none exists.
	LatestApproved(ctx context.Context, runID, checkpointType string) (domain.Approval, error)
	Decide(ctx context.Context, id, decision, reviewer, note string) error
}

// GuardrailRepository manages stored guardrail policy records.
type GuardrailRepository interface {
	GetGlobal(ctx context.Context) (domain.GuardrailPolicy, error)
	GetForRun(ctx context.Context, runID string) (domain.GuardrailPolicy, error)
	Upsert(ctx context.Context, policy domain.GuardrailPolicy) error
}

// RiskFlagRepository manages compliance and manual risk flags.
type RiskFlagRepository interface {
	Create(ctx context.Context, flag domain.RiskFlag) error
	Get(ctx context.Context, id string) (domain.RiskFlag, error)
	ListByRun(ctx context.Context, runID string) ([]domain.RiskFlag, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// ScoreRepository manages idea score records.
type ScoreRepository interface {
	Create(ctx context.Context, score domain.IdeaScore) error
	ListTopByRun(ctx context.Context, runID string, limit int) ([]domain.IdeaScore, error)
}

// ArtifactRepository manages artifact metadata rows.
type ArtifactRepository interface {
	Create(ctx context.Context, artifact domain.Artifact) error
	Get(ctx context.Context, id string) (domain.Artifact, error)
	ListByRun(ctx context.Context, runID string) ([]domain.Artifact, error)
	NextVersion(ctx context.Context, runID, artifactType string) (int, error)
}

// AuditRepository is append-only. Appends are never validated against
// business rules; listings return newest-first.
type AuditRepository interface {
	Append(ctx context.Context, record domain.AuditRecord) (int64, error)
	ListByRun(ctx context.Context, runID string, limit int) ([]domain.AuditRecord, error)
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditRecord, error)
}

// Tx bundles the per-entity repositories visible inside one atomic
// unit of work.
type Tx interface {
	Runs() RunRepository
	Steps() StepRepository
	Approvals() ApprovalRepository
	Guardrails() GuardrailRepository
	Risks() RiskFlagRepository
	Scores() ScoreRepository
	Artifacts() ArtifactRepository
	Audit() AuditRepository
}

// Store is the root storage handle. Reads outside a transaction go
// through the embedded Tx view; every top-level mutation runs inside
// WithinTx so precondition checks and writes are indivisible.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
