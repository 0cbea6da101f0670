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

// RiskFlagInput is a manually raised risk flag.
type RiskFlagInput struct {
	RunID       string
	Scope       string
	Severity    string
	Title       string
	Description string
	Mitigation  string
}

// AddRiskFlag records a manual risk flag against a run.
func (s *Service) AddRiskFlag(ctx context.Context, info AuditInfo, input RiskFlagInput) (domain.RiskFlag, error) {
	if s == nil || s.store == nil {
		return domain.RiskFlag{}, errors.New("orchestrate service not initialized")
	}
	now := time.Now().UTC()
	flag := domain.RiskFlag{
		ID:          uuid.NewString(),
		RunID:       strings.TrimSpace(input.RunID),
		Scope:       strings.TrimSpace(input.Scope),
		Severity:    strings.TrimSpace(input.Severity),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Mitigation:  input.Mitigation,
		Status:      domain.RiskStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := flag.Validate(); err != nil {
		return domain.RiskFlag{}, err
	}
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		if _, err := tx.Runs().Get(ctx, flag.RunID); err != nil {
			return err
		}
		if err := tx.Risks().Create(ctx, flag); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "risk_flag.created",
			entityType: "risk_flag",
			entityID:   flag.ID,
			runID:      flag.RunID,
			details: domain.Metadata{
				"scope":    flag.Scope,
				"severity": flag.Severity,
				"title":    flag.Title,
			},
		})
	})
	if err != nil {
		return domain.RiskFlag{}, err
	}
	return flag, nil
}

// UpdateRiskStatus moves a flag through its review lifecycle.
func (s *Service) UpdateRiskStatus(ctx context.Context, info AuditInfo, flagID, status string) error {
	if s == nil || s.store == nil {
		return errors.New("orchestrate service not initialized")
	}
	if !domain.IsValidRiskStatus(status) {
		return fmt.Errorf("unsupported risk status: %q", status)
	}
	return s.store.WithinTx(ctx, func(tx repo.Tx) error {
		flag, err := tx.Risks().Get(ctx, flagID)
		if err != nil {
			return err
		}
		if err := tx.Risks().UpdateStatus(ctx, flagID, status); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "risk_flag.status_updated",
			entityType: "risk_flag",
			entityID:   flagID,
			runID:      flag.RunID,
			details: domain.Metadata{
				"from": flag.Status,
				"to":   status,
			},
		})
	})
}

// ListRiskFlags returns a run's risk flags, newest first.
func (s *Service) ListRiskFlags(ctx context.Context, runID string) ([]domain.RiskFlag, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Risks().ListByRun(ctx, runID)
}

// IdeaScoreInput is one scored idea from the scoring step.
type IdeaScoreInput struct {
	RunID         string
	IdeaKey       string
	RubricVersion string
	Dimensions    domain.Metadata
	Weights       domain.Metadata
	OverallScore  float64
	Unknowns      []string
}

// AddIdeaScore records a rubric score for one idea in a run.
func (s *Service) AddIdeaScore(ctx context.Context, info AuditInfo, input IdeaScoreInput) (domain.IdeaScore, error) {
	if s == nil || s.store == nil {
		return domain.IdeaScore{}, errors.New("orchestrate service not initialized")
	}
	score := domain.IdeaScore{
		ID:            uuid.NewString(),
		RunID:         strings.TrimSpace(input.RunID),
		IdeaKey:       strings.TrimSpace(input.IdeaKey),
		RubricVersion: strings.TrimSpace(input.RubricVersion),
		Dimensions:    input.Dimensions,
		Weights:       input.Weights,
		OverallScore:  input.OverallScore,
		Unknowns:      input.Unknowns,
		CreatedAt:     time.Now().UTC(),
	}
	if err := score.Validate(); err != nil {
		return domain.IdeaScore{}, err
	}
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		if _, err := tx.Runs().Get(ctx, score.RunID); err != nil {
			return err
		}
		if err := tx.Scores().Create(ctx, score); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "score.recorded",
			entityType: "score",
			entityID:   score.ID,
			runID:      score.RunID,
			details: domain.Metadata{
				"idea_key":       score.IdeaKey,
				"rubric_version": score.RubricVersion,
				"overall_score":  score.OverallScore,
			},
		})
	})
	if err != nil {
		return domain.IdeaScore{}, err
	}
	return score, nil
}

// ListTopScores returns the run's best-scoring ideas.
func (s *Service) ListTopScores(ctx context.Context, runID string, limit int) ([]domain.IdeaScore, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Scores().ListTopByRun(ctx, runID, limit)
}

// ArtifactInput is the metadata of one produced artifact. Content is
// stored in the object store under ObjectKey by the caller.
type ArtifactInput struct {
	RunID        string
	StepKey      string
	ArtifactType string
	Format       string
	Title        string
	ObjectKey    string
	EvidenceRefs []string
}

// CreateArtifact records artifact metadata and assigns the next
// version for its (run, type) series.
func (s *Service) CreateArtifact(ctx context.Context, info AuditInfo, input ArtifactInput) (domain.Artifact, error) {
	if s == nil || s.store == nil {
		return domain.Artifact{}, errors.New("orchestrate service not initialized")
	}
	artifact := domain.Artifact{
		ID:           uuid.NewString(),
		RunID:        strings.TrimSpace(input.RunID),
		StepKey:      strings.TrimSpace(input.StepKey),
		ArtifactType: strings.TrimSpace(input.ArtifactType),
		Format:       strings.TrimSpace(input.Format),
		Title:        strings.TrimSpace(input.Title),
		ObjectKey:    strings.TrimSpace(input.ObjectKey),
		EvidenceRefs: input.EvidenceRefs,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		if _, err := tx.Runs().Get(ctx, artifact.RunID); err != nil {
			return err
		}
		version, err := tx.Artifacts().NextVersion(ctx, artifact.RunID, artifact.ArtifactType)
		if err != nil {
			return err
		}
		artifact.Version = version
		if err := artifact.Validate(); err != nil {
			return err
		}
		if err := tx.Artifacts().Create(ctx, artifact); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "artifact.created",
			entityType: "artifact",
			entityID:   artifact.ID,
			runID:      artifact.RunID,
			details: domain.Metadata{
				"artifact_type": artifact.ArtifactType,
				"version":       artifact.Version,
				"title":         artifact.Title,
			},
		})
	})
	if err != nil {
		return domain.Artifact{}, err
	}
	return artifact, nil
}

// GetArtifact returns one artifact's metadata.
func (s *Service) GetArtifact(ctx context.Context, id string) (domain.Artifact, error) {
	if s == nil || s.store == nil {
		return domain.Artifact{}, errors.New("orchestrate service not initialized")
	}
	return s.store.Artifacts().Get(ctx, id)
}

// ListArtifacts returns a run's artifact metadata rows.
func (s *Service) ListArtifacts(ctx context.Context, runID string) ([]domain.Artifact, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Artifacts().ListByRun(ctx, runID)
}

// UpsertGuardrail stores a partial guardrail policy at its scope. A
// run-scoped policy requires an existing run.
func (s *Service) UpsertGuardrail(ctx context.Context, info AuditInfo, policy domain.GuardrailPolicy) error {
	if s == nil || s.store == nil {
		return errors.New("orchestrate service not initialized")
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(tx repo.Tx) error {
		if policy.Scope == domain.GuardrailScopeRun {
			if _, err := tx.Runs().Get(ctx, policy.RunID); err != nil {
				return err
			}
		}
		if err := tx.Guardrails().Upsert(ctx, policy); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, info, auditEntry{
			action:     "guardrail.updated",
			entityType: "guardrail",
			entityID:   policy.ID,
			runID:      policy.RunID,
			details: domain.Metadata{
				"scope": policy.Scope,
			},
		})
	})
}

// ListAuditByRun returns a run's audit trail, newest first.
func (s *Service) ListAuditByRun(ctx context.Context, runID string, limit int) ([]domain.AuditRecord, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Audit().ListByRun(ctx, runID, limit)
}

// ListAuditByEntity returns an entity's audit trail, newest first.
func (s *Service) ListAuditByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditRecord, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("orchestrate service not initialized")
	}
	return s.store.Audit().ListByEntity(ctx, entityType, entityID, limit)
}
