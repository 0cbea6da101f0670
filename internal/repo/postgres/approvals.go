package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

type ApprovalStore struct {
	db DB
}

func NewApprovalStore(db DB) *ApprovalStore {
	if db == nil {
		return nil
	}
	return &ApprovalStore{db: db}
}

const approvalColumns = `approval_id, run_id, step_id, checkpoint_type, status, payload,
	requested_by, reviewed_by, decision_note, created_at, updated_at`

const latestApprovedQuery = `SELECT ` + approvalColumns + ` FROM venture_approvals
	 WHERE run_id = $1 AND checkpoint_type = $2 AND status = $3
	 ORDER BY updated_at DESC
	 LIMIT 1`

const decideApprovalQuery = `UPDATE venture_approvals
	 SET status = $1, reviewed_by = $2, decision_note = $3, updated_at = $4
	 WHERE approval_id = $5 AND status = $6`

func (s *ApprovalStore) Create(ctx context.Context, approval domain.Approval) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("approval store not initialized")
	}
	if err := approval.Validate(); err != nil {
		return err
	}
	payloadJSON, err := encodeMetadata(approval.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO venture_approvals (
			approval_id,
			run_id,
			step_id,
			checkpoint_type,
			status,
			payload,
			requested_by,
			reviewed_by,
			decision_note,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		strings.TrimSpace(approval.ID),
		strings.TrimSpace(approval.RunID),
		nullIfEmpty(approval.StepID),
		strings.TrimSpace(approval.CheckpointType),
		strings.TrimSpace(approval.Status),
		payloadJSON,
		strings.TrimSpace(approval.RequestedBy),
		nullIfEmpty(approval.ReviewedBy),
		nullIfEmpty(approval.DecisionNote),
		normalizeTime(approval.CreatedAt),
		normalizeTime(approval.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *ApprovalStore) Get(ctx context.Context, id string) (domain.Approval, error) {
	return s.get(ctx, id, false)
}

func (s *ApprovalStore) GetForUpdate(ctx context.Context, id string) (domain.Approval, error) {
	return s.get(ctx, id, true)
}

func (s *ApprovalStore) get(ctx context.Context, id string, forUpdate bool) (domain.Approval, error) {
	if s == nil || s.db == nil {
		return domain.Approval{}, fmt.Errorf("approval store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Approval{}, fmt.Errorf("approval id is required")
	}
	query := `SELECT ` + approvalColumns + ` FROM venture_approvals WHERE approval_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := s.db.QueryRowContext(ctx, query, id)
	approval, err := scanApproval(row)
	if err != nil {
		return domain.Approval{}, handleNotFound(err)
	}
	return approval, nil
}

func (s *ApprovalStore) ListByRun(ctx context.Context, runID string) ([]domain.Approval, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("approval store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	return s.list(
		ctx,
		`SELECT `+approvalColumns+` FROM venture_approvals WHERE run_id = $1 ORDER BY created_at DESC`,
		runID,
	)
}

func (s *ApprovalStore) ListPending(ctx context.Context, limit int) ([]domain.Approval, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("approval store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	return s.list(
		ctx,
		`SELECT `+approvalColumns+` FROM venture_approvals WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		domain.ApprovalStatusPending,
		limit,
	)
}

func (s *ApprovalStore) LatestApproved(ctx context.Context, runID, checkpointType string) (domain.Approval, error) {
	if s == nil || s.db == nil {
		return domain.Approval{}, fmt.Errorf("approval store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return domain.Approval{}, fmt.Errorf("run id is required")
	}
	if !domain.IsValidCheckpointType(checkpointType) {
		return domain.Approval{}, fmt.Errorf("unsupported checkpoint type: %q", checkpointType)
	}
	row := s.db.QueryRowContext(
		ctx,
		latestApprovedQuery,
		runID,
		checkpointType,
		domain.ApprovalStatusApproved,
	)
	approval, err := scanApproval(row)
	if err != nil {
		return domain.Approval{}, handleNotFound(err)
	}
	return approval, nil
}

// Decide freezes a pending approval. The status guard in the WHERE
// clause backs up the caller's precondition check.
func (s *ApprovalStore) Decide(ctx context.Context, id, decision, reviewer, note string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("approval store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("approval id is required")
	}
	if !domain.IsValidDecision(decision) {
		return fmt.Errorf("unsupported decision: %q", decision)
	}
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return fmt.Errorf("reviewer is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		decideApprovalQuery,
		decision,
		reviewer,
		nullIfEmpty(note),
		time.Now().UTC(),
		id,
		domain.ApprovalStatusPending,
	)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	return requireRowAffected(res, "decide approval")
}

func (s *ApprovalStore) list(ctx context.Context, query string, args ...any) ([]domain.Approval, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	approvals := make([]domain.Approval, 0)
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}

func scanApproval(row rowScanner) (domain.Approval, error) {
	var approval domain.Approval
	var stepID sql.NullString
	var payloadJSON []byte
	var reviewedBy sql.NullString
	var decisionNote sql.NullString
	if err := row.Scan(
		&approval.ID,
		&approval.RunID,
		&stepID,
		&approval.CheckpointType,
		&approval.Status,
		&payloadJSON,
		&approval.RequestedBy,
		&reviewedBy,
		&decisionNote,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	); err != nil {
		return domain.Approval{}, err
	}
	if stepID.Valid {
		approval.StepID = stepID.String
	}
	if reviewedBy.Valid {
		approval.ReviewedBy = reviewedBy.String
	}
	if decisionNote.Valid {
		approval.DecisionNote = decisionNote.String
	}
	payload, err := decodeMetadata(payloadJSON)
	if err != nil {
		return domain.Approval{}, fmt.Errorf("decode payload: %w", err)
	}
	approval.Payload = payload
	return approval, nil
}
