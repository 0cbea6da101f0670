package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

type ArtifactStore struct {
	db DB
}

func NewArtifactStore(db DB) *ArtifactStore {
	if db == nil {
		return nil
	}
	return &ArtifactStore{db: db}
}

const artifactColumns = `artifact_id, run_id, step_key, artifact_type, format, title,
	object_key, evidence_refs, version, created_at`

func (s *ArtifactStore) Create(ctx context.Context, artifact domain.Artifact) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("artifact store not initialized")
	}
	if err := artifact.Validate(); err != nil {
		return err
	}
	evidenceJSON, err := encodeStrings(artifact.EvidenceRefs)
	if err != nil {
		return fmt.Errorf("encode evidence refs: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO venture_artifacts (
			artifact_id,
			run_id,
			step_key,
			artifact_type,
			format,
			title,
			object_key,
			evidence_refs,
			version,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		strings.TrimSpace(artifact.ID),
		strings.TrimSpace(artifact.RunID),
		nullIfEmpty(artifact.StepKey),
		strings.TrimSpace(artifact.ArtifactType),
		strings.TrimSpace(artifact.Format),
		strings.TrimSpace(artifact.Title),
		strings.TrimSpace(artifact.ObjectKey),
		evidenceJSON,
		artifact.Version,
		normalizeTime(artifact.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *ArtifactStore) Get(ctx context.Context, id string) (domain.Artifact, error) {
	if s == nil || s.db == nil {
		return domain.Artifact{}, fmt.Errorf("artifact store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Artifact{}, fmt.Errorf("artifact id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+artifactColumns+` FROM venture_artifacts WHERE artifact_id = $1`,
		id,
	)
	artifact, err := scanArtifact(row)
	if err != nil {
		return domain.Artifact{}, handleNotFound(err)
	}
	return artifact, nil
}

func (s *ArtifactStore) ListByRun(ctx context.Context, runID string) ([]domain.Artifact, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("artifact store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+artifactColumns+` FROM venture_artifacts WHERE run_id = $1 ORDER BY created_at DESC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := make([]domain.Artifact, 0)
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}

func (s *ArtifactStore) NextVersion(ctx context.Context, runID, artifactType string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("artifact store not initialized")
	}
	runID = strings.TrimSpace(runID)
	artifactType = strings.TrimSpace(artifactType)
	if runID == "" {
		return 0, fmt.Errorf("run id is required")
	}
	if artifactType == "" {
		return 0, fmt.Errorf("artifact type is required")
	}
	var next int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM venture_artifacts WHERE run_id = $1 AND artifact_type = $2`,
		runID,
		artifactType,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next artifact version: %w", err)
	}
	return next, nil
}

func scanArtifact(row rowScanner) (domain.Artifact, error) {
	var artifact domain.Artifact
	var stepKey sql.NullString
	var evidenceJSON []byte
	if err := row.Scan(
		&artifact.ID,
		&artifact.RunID,
		&stepKey,
		&artifact.ArtifactType,
		&artifact.Format,
		&artifact.Title,
		&artifact.ObjectKey,
		&evidenceJSON,
		&artifact.Version,
		&artifact.CreatedAt,
	); err != nil {
		return domain.Artifact{}, err
	}
	if stepKey.Valid {
		artifact.StepKey = stepKey.String
	}
	evidence, err := decodeStrings(evidenceJSON)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("decode evidence refs: %w", err)
	}
	artifact.EvidenceRefs = evidence
	return artifact, nil
}
