package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

type RiskFlagStore struct {
	db DB
}

func NewRiskFlagStore(db DB) *RiskFlagStore {
	if db == nil {
		return nil
	}
	return &RiskFlagStore{db: db}
}

const riskFlagColumns = `risk_id, run_id, scope, severity, title, description,
	mitigation, status, created_at, updated_at`

func (s *RiskFlagStore) Create(ctx context.Context, flag domain.RiskFlag) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("risk flag store not initialized")
	}
	if err := flag.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO venture_risk_flags (
			risk_id,
			run_id,
			scope,
			severity,
			title,
			description,
			mitigation,
			status,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		strings.TrimSpace(flag.ID),
		strings.TrimSpace(flag.RunID),
		strings.TrimSpace(flag.Scope),
		strings.TrimSpace(flag.Severity),
		strings.TrimSpace(flag.Title),
		flag.Description,
		nullIfEmpty(flag.Mitigation),
		strings.TrimSpace(flag.Status),
		normalizeTime(flag.CreatedAt),
		normalizeTime(flag.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert risk flag: %w", err)
	}
	return nil
}

func (s *RiskFlagStore) Get(ctx context.Context, id string) (domain.RiskFlag, error) {
	if s == nil || s.db == nil {
		return domain.RiskFlag{}, fmt.Errorf("risk flag store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RiskFlag{}, fmt.Errorf("risk flag id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+riskFlagColumns+` FROM venture_risk_flags WHERE risk_id = $1`,
		id,
	)
	flag, err := scanRiskFlag(row)
	if err != nil {
		return domain.RiskFlag{}, handleNotFound(err)
	}
	return flag, nil
}

func (s *RiskFlagStore) ListByRun(ctx context.Context, runID string) ([]domain.RiskFlag, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("risk flag store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+riskFlagColumns+` FROM venture_risk_flags WHERE run_id = $1 ORDER BY created_at DESC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list risk flags: %w", err)
	}
	defer rows.Close()

	flags := make([]domain.RiskFlag, 0)
	for rows.Next() {
		flag, err := scanRiskFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan risk flag: %w", err)
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list risk flags: %w", err)
	}
	return flags, nil
}

func (s *RiskFlagStore) UpdateStatus(ctx context.Context, id, status string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("risk flag store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("risk flag id is required")
	}
	if !domain.IsValidRiskStatus(status) {
		return fmt.Errorf("unsupported risk status: %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE venture_risk_flags SET status = $1, updated_at = $2 WHERE risk_id = $3`,
		status,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update risk status: %w", err)
	}
	return requireRowAffected(res, "update risk status")
}

func scanRiskFlag(row rowScanner) (domain.RiskFlag, error) {
	var flag domain.RiskFlag
	var mitigation sql.NullString
	if err := row.Scan(
		&flag.ID,
		&flag.RunID,
		&flag.Scope,
		&flag.Severity,
		&flag.Title,
		&flag.Description,
		&mitigation,
		&flag.Status,
		&flag.CreatedAt,
		&flag.UpdatedAt,
	); err != nil {
		return domain.RiskFlag{}, err
	}
	if mitigation.Valid {
		flag.Mitigation = mitigation.String
	}
	return flag, nil
}
