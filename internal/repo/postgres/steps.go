package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

type StepStore struct {
	db DB
}

func NewStepStore(db DB) *StepStore {
	if db == nil {
		return nil
	}
	return &StepStore{db: db}
}

const stepColumns = `step_id, run_id, step_key, status, input, output, evidence_refs,
	retry_count, started_at, finished_at, updated_at`

const markRerunQuery = `UPDATE venture_run_steps
	 SET status = $1,
		 retry_count = retry_count + 1,
		 started_at = $2,
		 finished_at = NULL,
		 updated_at = $3
	 WHERE step_id = $4`

func (s *StepStore) CreateBatch(ctx context.Context, steps []domain.Step) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("step store not initialized")
	}
	for _, step := range steps {
		if err := step.Validate(); err != nil {
			return err
		}
		inputJSON, err := encodeNullableMetadata(step.Input)
		if err != nil {
			return fmt.Errorf("encode input: %w", err)
		}
		outputJSON, err := encodeNullableMetadata(step.Output)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		evidenceJSON, err := encodeStrings(step.EvidenceRefs)
		if err != nil {
			return fmt.Errorf("encode evidence refs: %w", err)
		}
		_, err = s.db.ExecContext(
			ctx,
			`INSERT INTO venture_run_steps (
				step_id,
				run_id,
				step_key,
				status,
				input,
				output,
				evidence_refs,
				retry_count,
				started_at,
				finished_at,
				updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			strings.TrimSpace(step.ID),
			strings.TrimSpace(step.RunID),
			strings.TrimSpace(step.StepKey),
			strings.TrimSpace(step.Status),
			inputJSON,
			outputJSON,
			evidenceJSON,
			step.RetryCount,
			nullTime(step.StartedAt),
			nullTime(step.FinishedAt),
			normalizeTime(step.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert step %s: %w", step.StepKey, err)
		}
	}
	return nil
}

func (s *StepStore) Get(ctx context.Context, runID, stepKey string) (domain.Step, error) {
	return s.get(ctx, runID, stepKey, false)
}

func (s *StepStore) GetForUpdate(ctx context.Context, runID, stepKey string) (domain.Step, error) {
	return s.get(ctx, runID, stepKey, true)
}

func (s *StepStore) get(ctx context.Context, runID, stepKey string, forUpdate bool) (domain.Step, error) {
	if s == nil || s.db == nil {
		return domain.Step{}, fmt.Errorf("step store not initialized")
	}
	runID = strings.TrimSpace(runID)
	stepKey = strings.TrimSpace(stepKey)
	if runID == "" {
		return domain.Step{}, fmt.Errorf("run id is required")
	}
	if stepKey == "" {
		return domain.Step{}, fmt.Errorf("step key is required")
	}
	query := `SELECT ` + stepColumns + ` FROM venture_run_steps WHERE run_id = $1 AND step_key = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := s.db.QueryRowContext(ctx, query, runID, stepKey)
	step, err := scanStep(row)
	if err != nil {
		return domain.Step{}, handleNotFound(err)
	}
	return step, nil
}

func (s *StepStore) ListByRun(ctx context.Context, runID string) ([]domain.Step, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("step store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+stepColumns+` FROM venture_run_steps WHERE run_id = $1 ORDER BY step_key`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	steps := make([]domain.Step, 0)
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return steps, nil
}

func (s *StepStore) CountByRun(ctx context.Context, runID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("step store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return 0, fmt.Errorf("run id is required")
	}
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM venture_run_steps WHERE run_id = $1`,
		runID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count steps: %w", err)
	}
	return count, nil
}

func (s *StepStore) RecordOutput(ctx context.Context, id, status string, output domain.Metadata, evidenceRefs []string, finishedAt *time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("step store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("step id is required")
	}
	if !domain.IsValidStepStatus(status) {
		return fmt.Errorf("unsupported step status: %q", status)
	}
	outputJSON, err := encodeNullableMetadata(output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	evidenceJSON, err := encodeNullableStrings(evidenceRefs)
	if err != nil {
		return fmt.Errorf("encode evidence refs: %w", err)
	}
	// COALESCE keeps prior evidence when the caller passes none.
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE venture_run_steps
		 SET status = $1,
			 output = $2,
			 evidence_refs = COALESCE($3, evidence_refs),
			 finished_at = COALESCE($4, finished_at),
			 updated_at = $5
		 WHERE step_id = $6`,
		status,
		outputJSON,
		evidenceJSON,
		nullTime(finishedAt),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("record step output: %w", err)
	}
	return requireRowAffected(res, "record step output")
}

func (s *StepStore) SetStatus(ctx context.Context, id, status string, finishedAt *time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("step store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("step id is required")
	}
	if !domain.IsValidStepStatus(status) {
		return fmt.Errorf("unsupported step status: %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE venture_run_steps SET status = $1, finished_at = $2, updated_at = $3 WHERE step_id = $4`,
		status,
		nullTime(finishedAt),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set step status: %w", err)
	}
	return requireRowAffected(res, "set step status")
}

func (s *StepStore) MarkRerun(ctx context.Context, id string, startedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("step store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("step id is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		markRerunQuery,
		domain.StepStatusRunning,
		normalizeTime(startedAt),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark step rerun: %w", err)
	}
	return requireRowAffected(res, "mark step rerun")
}

func scanStep(row rowScanner) (domain.Step, error) {
	var step domain.Step
	var inputJSON []byte
	var outputJSON []byte
	var evidenceJSON []byte
	var startedAt sql.NullTime
	var finishedAt sql.NullTime
	if err := row.Scan(
		&step.ID,
		&step.RunID,
		&step.StepKey,
		&step.Status,
		&inputJSON,
		&outputJSON,
		&evidenceJSON,
		&step.RetryCount,
		&startedAt,
		&finishedAt,
		&step.UpdatedAt,
	); err != nil {
		return domain.Step{}, err
	}
	if startedAt.Valid {
		started := startedAt.Time.UTC()
		step.StartedAt = &started
	}
	if finishedAt.Valid {
		finished := finishedAt.Time.UTC()
		step.FinishedAt = &finished
	}
	input, err := decodeNullableMetadata(inputJSON)
	if err != nil {
		return domain.Step{}, fmt.Errorf("decode input: %w", err)
	}
	step.Input = input
	output, err := decodeNullableMetadata(outputJSON)
	if err != nil {
		return domain.Step{}, fmt.Errorf("decode output: %w", err)
	}
	step.Output = output
	evidence, err := decodeStrings(evidenceJSON)
	if err != nil {
		return domain.Step{}, fmt.Errorf("decode evidence refs: %w", err)
	}
	step.EvidenceRefs = evidence
	return step, nil
}
