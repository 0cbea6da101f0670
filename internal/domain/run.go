package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Run statuses.
const (
	RunStatusDraft            = "draft"
	RunStatusRunning          = "running"
	RunStatusAwaitingApproval = "awaiting_approval"
	RunStatusApproved         = "approved"
	RunStatusBlocked          = "blocked"
	RunStatusCompleted        = "completed"
	RunStatusFailed           = "failed"
)

// Capability profiles an operator can declare for a run.
const (
	CapabilityDev    = "dev"
	CapabilityNoCode = "no_code"
	CapabilityHybrid = "hybrid"
)

// Run is a single venture-evaluation pipeline execution. Niche, geo,
// language, constraints, and capabilities are immutable inputs.
// LockedAssumptions is write-once: nil until locked, frozen afterwards.
type Run struct {
	ID                string
	Niche             string
	Geo               string
	Language          string
	Constraints       []string
	Capabilities      string
	Status            string
	CurrentStepKey    string
	LockedAssumptions Metadata
	Seed              string
	Version           int
	StartedAt         time.Time
	CompletedAt       *time.Time
	CreatedBy         string
	UpdatedAt         time.Time
}

func (r Run) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.Niche) == "" {
		return errors.New("niche is required")
	}
	if strings.TrimSpace(r.Geo) == "" {
		return errors.New("geo is required")
	}
	if strings.TrimSpace(r.Language) == "" {
		return errors.New("language is required")
	}
	if !IsValidCapabilities(r.Capabilities) {
		return fmt.Errorf("unsupported capabilities: %q", r.Capabilities)
	}
	if !IsValidRunStatus(r.Status) {
		return fmt.Errorf("unsupported run status: %q", r.Status)
	}
	if strings.TrimSpace(r.CreatedBy) == "" {
		return errors.New("created_by is required")
	}
	if r.Version < 1 {
		return errors.New("version must be >= 1")
	}
	return nil
}

func IsValidRunStatus(status string) bool {
	switch status {
	case RunStatusDraft, RunStatusRunning, RunStatusAwaitingApproval,
		RunStatusApproved, RunStatusBlocked, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminalRunStatus reports whether CompleteRun may set this status.
func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusFailed, RunStatusBlocked:
		return true
	default:
		return false
	}
}

// IsClosedRunStatus reports whether a run accepts no further work.
// Blocked is not closed: a rerun or a fresh approval can revive a
// blocked run.
func IsClosedRunStatus(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

func IsValidCapabilities(value string) bool {
	switch value {
	case CapabilityDev, CapabilityNoCode, CapabilityHybrid:
		return true
	default:
		return false
	}
}
