package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// Store implements repo.Store over postgres. Direct calls run against
// the pool; WithinTx runs the callback against one transaction so
// precondition reads (FOR UPDATE) and writes commit atomically.
type Store struct {
	db *sql.DB
	view
}

type view struct {
	runs       *RunStore
	steps      *StepStore
	approvals  *ApprovalStore
	guardrails *GuardrailStore
	risks      *RiskFlagStore
	scores     *ScoreStore
	artifacts  *ArtifactStore
	audit      *AuditStore
}

func newView(db DB) view {
	return view{
		runs:       NewRunStore(db),
		steps:      NewStepStore(db),
		approvals:  NewApprovalStore(db),
		guardrails: NewGuardrailStore(db),
		risks:      NewRiskFlagStore(db),
		scores:     NewScoreStore(db),
		artifacts:  NewArtifactStore(db),
		audit:      NewAuditStore(db),
	}
}

func (v view) Runs() repo.RunRepository            { return v.runs }
func (v view) Steps() repo.StepRepository          { return v.steps }
func (v view) Approvals() repo.ApprovalRepository  { return v.approvals }
func (v view) Guardrails() repo.GuardrailRepository { return v.guardrails }
func (v view) Risks() repo.RiskFlagRepository      { return v.risks }
func (v view) Scores() repo.ScoreRepository        { return v.scores }
func (v view) Artifacts() repo.ArtifactRepository  { return v.artifacts }
func (v view) Audit() repo.AuditRepository         { return v.audit }

func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db, view: newView(db)}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repo.Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(newView(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
