package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Risk flag scopes.
const (
	RiskScopeIdea     = "idea"
	RiskScopeSocial   = "social"
	RiskScopePlatform = "platform"
	RiskScopeLegal    = "legal"
	RiskScopePrivacy  = "privacy"
	RiskScopeClaims   = "claims"
)

// Risk severities. HardStop blocks the run outright.
const (
	RiskSeverityLow      = "low"
	RiskSeverityMedium   = "medium"
	RiskSeverityHigh     = "high"
	RiskSeverityHardStop = "hard_stop"
)

// Risk statuses.
const (
	RiskStatusOpen      = "open"
	RiskStatusMitigated = "mitigated"
	RiskStatusAccepted  = "accepted"
	RiskStatusWaived    = "waived"
)

type RiskFlag struct {
	ID          string
	RunID       string
	Scope       string
	Severity    string
	Title       string
	Description string
	Mitigation  string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (f RiskFlag) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return errors.New("risk flag id is required")
	}
	if strings.TrimSpace(f.RunID) == "" {
		return errors.New("run id is required")
	}
	if !IsValidRiskScope(f.Scope) {
		return fmt.Errorf("unsupported risk scope: %q", f.Scope)
	}
	if !IsValidRiskSeverity(f.Severity) {
		return fmt.Errorf("unsupported risk severity: %q", f.Severity)
	}
	if strings.TrimSpace(f.Title) == "" {
		return errors.New("title is required")
	}
	if !IsValidRiskStatus(f.Status) {
		return fmt.Errorf("unsupported risk status: %q", f.Status)
	}
	return nil
}

func IsValidRiskScope(scope string) bool {
	switch scope {
	case RiskScopeIdea, RiskScopeSocial, RiskScopePlatform,
		RiskScopeLegal, RiskScopePrivacy, RiskScopeClaims:
		return true
	default:
		return false
	}
}

func IsValidRiskSeverity(severity string) bool {
	switch severity {
	case RiskSeverityLow, RiskSeverityMedium, RiskSeverityHigh, RiskSeverityHardStop:
		return true
	default:
		return false
	}
}

func IsValidRiskStatus(status string) bool {
	switch status {
	case RiskStatusOpen, RiskStatusMitigated, RiskStatusAccepted, RiskStatusWaived:
		return true
	default:
		return false
	}
}
