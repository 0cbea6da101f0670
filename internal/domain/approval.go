package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Checkpoint types, one per human-approval gate in the pipeline.
const (
	CheckpointNicheBrief      = "NICHE_BRIEF"
	CheckpointTriggerMap      = "TRIGGER_MAP"
	CheckpointShortlist       = "SHORTLIST"
	CheckpointPnlRiskGoNoGo   = "PNL_RISK_GO_NO_GO"
	CheckpointSocialPackFinal = "SOCIAL_PACK_FINAL"
)

// Approval statuses. Once not pending the record is frozen.
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

type Approval struct {
	ID             string
	RunID          string
	StepID         string
	CheckpointType string
	Status         string
	Payload        Metadata
	RequestedBy    string
	ReviewedBy     string
	DecisionNote   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a Approval) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("approval id is required")
	}
	if strings.TrimSpace(a.RunID) == "" {
		return errors.New("run id is required")
	}
	if !IsValidCheckpointType(a.CheckpointType) {
		return fmt.Errorf("unsupported checkpoint type: %q", a.CheckpointType)
	}
	if !IsValidApprovalStatus(a.Status) {
		return fmt.Errorf("unsupported approval status: %q", a.Status)
	}
	if strings.TrimSpace(a.RequestedBy) == "" {
		return errors.New("requested_by is required")
	}
	return nil
}

func IsValidCheckpointType(value string) bool {
	switch value {
	case CheckpointNicheBrief, CheckpointTriggerMap, CheckpointShortlist,
		CheckpointPnlRiskGoNoGo, CheckpointSocialPackFinal:
		return true
	default:
		return false
	}
}

func IsValidApprovalStatus(status string) bool {
	switch status {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	default:
		return false
	}
}

// IsValidDecision reports whether a reviewer may set this status.
func IsValidDecision(decision string) bool {
	return decision == ApprovalStatusApproved || decision == ApprovalStatusRejected
}
