package main

import (
	"net"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

// Wire shapes for API responses. Domain structs stay transport-free;
// the mapping lives here.

type stepResponse struct {
	StepID       string          `json:"step_id"`
	RunID        string          `json:"run_id"`
	StepKey      string          `json:"step_key"`
	Status       string          `json:"status"`
	Input        domain.Metadata `json:"input,omitempty"`
	Output       domain.Metadata `json:"output,omitempty"`
	EvidenceRefs []string        `json:"evidence_refs,omitempty"`
	RetryCount   int             `json:"retry_count"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func stepToWire(step domain.Step) stepResponse {
	return stepResponse{
		StepID:       step.ID,
		RunID:        step.RunID,
		StepKey:      step.StepKey,
		Status:       step.Status,
		Input:        step.Input,
		Output:       step.Output,
		EvidenceRefs: step.EvidenceRefs,
		RetryCount:   step.RetryCount,
		StartedAt:    step.StartedAt,
		FinishedAt:   step.FinishedAt,
		UpdatedAt:    step.UpdatedAt,
	}
}

func stepsToWire(steps []domain.Step) []stepResponse {
	out := make([]stepResponse, 0, len(steps))
	for _, step := range steps {
		out = append(out, stepToWire(step))
	}
	return out
}

type approvalResponse struct {
	ApprovalID     string          `json:"approval_id"`
	RunID          string          `json:"run_id"`
	StepID         string          `json:"step_id,omitempty"`
	CheckpointType string          `json:"checkpoint_type"`
	Status         string          `json:"status"`
	Payload        domain.Metadata `json:"payload,omitempty"`
	RequestedBy    string          `json:"requested_by"`
	ReviewedBy     string          `json:"reviewed_by,omitempty"`
	DecisionNote   string          `json:"decision_note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func approvalToWire(approval domain.Approval) approvalResponse {
	return approvalResponse{
		ApprovalID:     approval.ID,
		RunID:          approval.RunID,
		StepID:         approval.StepID,
		CheckpointType: approval.CheckpointType,
		Status:         approval.Status,
		Payload:        approval.Payload,
		RequestedBy:    approval.RequestedBy,
		ReviewedBy:     approval.ReviewedBy,
		DecisionNote:   approval.DecisionNote,
		CreatedAt:      approval.CreatedAt,
		UpdatedAt:      approval.UpdatedAt,
	}
}

func approvalsToWire(approvals []domain.Approval) []approvalResponse {
	out := make([]approvalResponse, 0, len(approvals))
	for _, approval := range approvals {
		out = append(out, approvalToWire(approval))
	}
	return out
}

type riskFlagResponse struct {
	FlagID      string    `json:"flag_id"`
	RunID       string    `json:"run_id"`
	Scope       string    `json:"scope"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Mitigation  string    `json:"mitigation,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func riskFlagToWire(flag domain.RiskFlag) riskFlagResponse {
	return riskFlagResponse{
		FlagID:      flag.ID,
		RunID:       flag.RunID,
		Scope:       flag.Scope,
		Severity:    flag.Severity,
		Title:       flag.Title,
		Description: flag.Description,
		Mitigation:  flag.Mitigation,
		Status:      flag.Status,
		CreatedAt:   flag.CreatedAt,
		UpdatedAt:   flag.UpdatedAt,
	}
}

func riskFlagsToWire(flags []domain.RiskFlag) []riskFlagResponse {
	out := make([]riskFlagResponse, 0, len(flags))
	for _, flag := range flags {
		out = append(out, riskFlagToWire(flag))
	}
	return out
}

type scoreResponse struct {
	ScoreID       string          `json:"score_id"`
	RunID         string          `json:"run_id"`
	IdeaKey       string          `json:"idea_key"`
	RubricVersion string          `json:"rubric_version"`
	Dimensions    domain.Metadata `json:"dimensions,omitempty"`
	Weights       domain.Metadata `json:"weights,omitempty"`
	OverallScore  float64         `json:"overall_score"`
	Unknowns      []string        `json:"unknowns,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func scoreToWire(score domain.IdeaScore) scoreResponse {
	return scoreResponse{
		ScoreID:       score.ID,
		RunID:         score.RunID,
		IdeaKey:       score.IdeaKey,
		RubricVersion: score.RubricVersion,
		Dimensions:    score.Dimensions,
		Weights:       score.Weights,
		OverallScore:  score.OverallScore,
		Unknowns:      score.Unknowns,
		CreatedAt:     score.CreatedAt,
	}
}

func scoresToWire(scores []domain.IdeaScore) []scoreResponse {
	out := make([]scoreResponse, 0, len(scores))
	for _, score := range scores {
		out = append(out, scoreToWire(score))
	}
	return out
}

type artifactResponse struct {
	ArtifactID   string    `json:"artifact_id"`
	RunID        string    `json:"run_id"`
	StepKey      string    `json:"step_key,omitempty"`
	ArtifactType string    `json:"artifact_type"`
	Format       string    `json:"format"`
	Title        string    `json:"title"`
	ObjectKey    string    `json:"object_key"`
	EvidenceRefs []string  `json:"evidence_refs,omitempty"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
}

func artifactToWire(artifact domain.Artifact) artifactResponse {
	return artifactResponse{
		ArtifactID:   artifact.ID,
		RunID:        artifact.RunID,
		StepKey:      artifact.StepKey,
		ArtifactType: artifact.ArtifactType,
		Format:       artifact.Format,
		Title:        artifact.Title,
		ObjectKey:    artifact.ObjectKey,
		EvidenceRefs: artifact.EvidenceRefs,
		Version:      artifact.Version,
		CreatedAt:    artifact.CreatedAt,
	}
}

func artifactsToWire(artifacts []domain.Artifact) []artifactResponse {
	out := make([]artifactResponse, 0, len(artifacts))
	for _, artifact := range artifacts {
		out = append(out, artifactToWire(artifact))
	}
	return out
}

type auditRecordResponse struct {
	RecordID        int64           `json:"record_id"`
	OccurredAt      time.Time       `json:"occurred_at"`
	Actor           string          `json:"actor"`
	Action          string          `json:"action"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	RunID           string          `json:"run_id,omitempty"`
	RequestID       string          `json:"request_id,omitempty"`
	IP              string          `json:"ip,omitempty"`
	UserAgent       string          `json:"user_agent,omitempty"`
	Details         domain.Metadata `json:"details,omitempty"`
	IntegritySHA256 string          `json:"integrity_sha256,omitempty"`
}

func auditRecordToWire(record domain.AuditRecord) auditRecordResponse {
	return auditRecordResponse{
		RecordID:        record.RecordID,
		OccurredAt:      record.OccurredAt,
		Actor:           record.Actor,
		Action:          record.Action,
		EntityType:      record.EntityType,
		EntityID:        record.EntityID,
		RunID:           record.RunID,
		RequestID:       record.RequestID,
		IP:              ipToWire(record.IP),
		UserAgent:       record.UserAgent,
		Details:         record.Details,
		IntegritySHA256: record.IntegritySHA256,
	}
}

func auditRecordsToWire(records []domain.AuditRecord) []auditRecordResponse {
	out := make([]auditRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, auditRecordToWire(record))
	}
	return out
}

func ipToWire(ip net.IP) string {
	if len(ip) == 0 {
		return ""
	}
	return ip.String()
}
