package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Step statuses.
const (
	StepStatusPending       = "pending"
	StepStatusRunning       = "running"
	StepStatusCompleted     = "completed"
	StepStatusNeedsApproval = "needs_approval"
	StepStatusBlocked       = "blocked"
	StepStatusFailed        = "failed"
	StepStatusSkipped       = "skipped"
)

// Step is one stage of a run's fixed linear pipeline. Unique per
// (RunID, StepKey).
type Step struct {
	ID           string
	RunID        string
	StepKey      string
	Status       string
	Input        Metadata
	Output       Metadata
	EvidenceRefs []string
	RetryCount   int
	StartedAt    *time.Time
	FinishedAt   *time.Time
	UpdatedAt    time.Time
}

func (s Step) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("step id is required")
	}
	if strings.TrimSpace(s.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(s.StepKey) == "" {
		return errors.New("step key is required")
	}
	if !IsValidStepStatus(s.Status) {
		return fmt.Errorf("unsupported step status: %q", s.Status)
	}
	if s.RetryCount < 0 {
		return errors.New("retry count must be >= 0")
	}
	return nil
}

func IsValidStepStatus(status string) bool {
	switch status {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted,
		StepStatusNeedsApproval, StepStatusBlocked, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// IsValidStepOutcome reports whether RecordOutput may set this status.
// Pending is only ever assigned at seeding time.
func IsValidStepOutcome(status string) bool {
	switch status {
	case StepStatusRunning, StepStatusCompleted, StepStatusNeedsApproval,
		StepStatusBlocked, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}
