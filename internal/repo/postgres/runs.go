package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

const runColumns = `run_id, niche, geo, language, constraints, capabilities, status,
	current_step_key, locked_assumptions, seed, version, started_at, completed_at,
	created_by, updated_at`

const lockAssumptionsQuery = `UPDATE venture_runs SET locked_assumptions = $1, updated_at = $2
	 WHERE run_id = $3 AND locked_assumptions IS NULL`

func (s *RunStore) Create(ctx context.Context, run domain.Run) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	constraintsJSON, err := encodeStrings(run.Constraints)
	if err != nil {
		return fmt.Errorf("encode constraints: %w", err)
	}
	assumptionsJSON, err := encodeNullableMetadata(run.LockedAssumptions)
	if err != nil {
		return fmt.Errorf("encode locked assumptions: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO venture_runs (
			run_id,
			niche,
			geo,
			language,
			constraints,
			capabilities,
			status,
			current_step_key,
			locked_assumptions,
			seed,
			version,
			started_at,
			completed_at,
			created_by,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		strings.TrimSpace(run.ID),
		strings.TrimSpace(run.Niche),
		strings.TrimSpace(run.Geo),
		strings.TrimSpace(run.Language),
		constraintsJSON,
		strings.TrimSpace(run.Capabilities),
		strings.TrimSpace(run.Status),
		nullIfEmpty(run.CurrentStepKey),
		assumptionsJSON,
		nullIfEmpty(run.Seed),
		run.Version,
		normalizeTime(run.StartedAt),
		nullTime(run.CompletedAt),
		strings.TrimSpace(run.CreatedBy),
		normalizeTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) Get(ctx context.Context, id string) (domain.Run, error) {
	return s.get(ctx, id, false)
}

func (s *RunStore) GetForUpdate(ctx context.Context, id string) (domain.Run, error) {
	return s.get(ctx, id, true)
}

func (s *RunStore) get(ctx context.Context, id string, forUpdate bool) (domain.Run, error) {
	if s == nil || s.db == nil {
		return domain.Run{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Run{}, fmt.Errorf("run id is required")
	}
	query := `SELECT ` + runColumns + ` FROM venture_runs WHERE run_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := s.db.QueryRowContext(ctx, query, id)
	run, err := scanRun(row)
	if err != nil {
		return domain.Run{}, handleNotFound(err)
	}
	return run, nil
}

func (s *RunStore) List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	clauses := make([]string, 0, 1)
	args := make([]any, 0, 2)

	if strings.TrimSpace(filter.Status) != "" {
		args = append(args, strings.TrimSpace(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + runColumns + ` FROM venture_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStore) UpdateStatus(ctx context.Context, id, status string, completedAt *time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	if !domain.IsValidRunStatus(status) {
		return fmt.Errorf("unsupported run status: %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE venture_runs SET status = $1, completed_at = $2, updated_at = $3 WHERE run_id = $4`,
		status,
		nullTime(completedAt),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return requireRowAffected(res, "update run status")
}

func (s *RunStore) UpdateProgress(ctx context.Context, id, status, currentStepKey string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	if !domain.IsValidRunStatus(status) {
		return fmt.Errorf("unsupported run status: %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE venture_runs SET status = $1, current_step_key = $2, updated_at = $3 WHERE run_id = $4`,
		status,
		nullIfEmpty(currentStepKey),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return requireRowAffected(res, "update run progress")
}

func (s *RunStore) LockAssumptions(ctx context.Context, id string, assumptions domain.Metadata) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	assumptionsJSON, err := encodeMetadata(assumptions)
	if err != nil {
		return fmt.Errorf("encode assumptions: %w", err)
	}
	// Guarded in SQL too: never overwrites an existing lock.
	res, err := s.db.ExecContext(
		ctx,
		lockAssumptionsQuery,
		assumptionsJSON,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("lock assumptions: %w", err)
	}
	return requireRowAffected(res, "lock assumptions")
}

func requireRowAffected(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var constraintsJSON []byte
	var assumptionsJSON []byte
	var currentStepKey sql.NullString
	var seed sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(
		&run.ID,
		&run.Niche,
		&run.Geo,
		&run.Language,
		&constraintsJSON,
		&run.Capabilities,
		&run.Status,
		&currentStepKey,
		&assumptionsJSON,
		&seed,
		&run.Version,
		&run.StartedAt,
		&completedAt,
		&run.CreatedBy,
		&run.UpdatedAt,
	); err != nil {
		return domain.Run{}, err
	}
	if currentStepKey.Valid {
		run.CurrentStepKey = currentStepKey.String
	}
	if seed.Valid {
		run.Seed = seed.String
	}
	if completedAt.Valid {
		completed := completedAt.Time.UTC()
		run.CompletedAt = &completed
	}
	constraints, err := decodeStrings(constraintsJSON)
	if err != nil {
		return domain.Run{}, fmt.Errorf("decode constraints: %w", err)
	}
	run.Constraints = constraints
	assumptions, err := decodeNullableMetadata(assumptionsJSON)
	if err != nil {
		return domain.Run{}, fmt.Errorf("decode locked assumptions: %w", err)
	}
	run.LockedAssumptions = assumptions
	return run, nil
}
