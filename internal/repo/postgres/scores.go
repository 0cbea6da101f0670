package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

type ScoreStore struct {
	db DB
}

func NewScoreStore(db DB) *ScoreStore {
	if db == nil {
		return nil
	}
	return &ScoreStore{db: db}
}

func (s *ScoreStore) Create(ctx context.Context, score domain.IdeaScore) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("score store not initialized")
	}
	if err := score.Validate(); err != nil {
		return err
	}
	dimensionsJSON, err := encodeMetadata(score.Dimensions)
	if err != nil {
		return fmt.Errorf("encode dimensions: %w", err)
	}
	weightsJSON, err := encodeMetadata(score.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	unknownsJSON, err := encodeStrings(score.Unknowns)
	if err != nil {
		return fmt.Errorf("encode unknowns: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO venture_scores (
			score_id,
			run_id,
			idea_key,
			rubric_version,
			dimensions,
			weights,
			overall_score,
			unknowns,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		strings.TrimSpace(score.ID),
		strings.TrimSpace(score.RunID),
		strings.TrimSpace(score.IdeaKey),
		strings.TrimSpace(score.RubricVersion),
		dimensionsJSON,
		weightsJSON,
		score.OverallScore,
		unknownsJSON,
		normalizeTime(score.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

func (s *ScoreStore) ListTopByRun(ctx context.Context, runID string, limit int) ([]domain.IdeaScore, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("score store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT score_id, run_id, idea_key, rubric_version, dimensions, weights, overall_score, unknowns, created_at
		 FROM venture_scores
		 WHERE run_id = $1
		 ORDER BY overall_score DESC
		 LIMIT $2`,
		runID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	scores := make([]domain.IdeaScore, 0)
	for rows.Next() {
		var score domain.IdeaScore
		var dimensionsJSON []byte
		var weightsJSON []byte
		var unknownsJSON []byte
		if err := rows.Scan(
			&score.ID,
			&score.RunID,
			&score.IdeaKey,
			&score.RubricVersion,
			&dimensionsJSON,
			&weightsJSON,
			&score.OverallScore,
			&unknownsJSON,
			&score.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		dimensions, err := decodeMetadata(dimensionsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode dimensions: %w", err)
		}
		score.Dimensions = dimensions
		weights, err := decodeMetadata(weightsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode weights: %w", err)
		}
		score.Weights = weights
		unknowns, err := decodeStrings(unknownsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode unknowns: %w", err)
		}
		score.Unknowns = unknowns
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}
