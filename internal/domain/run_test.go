package domain

import (
	"testing"
	"time"
)

func TestRunValidate(t *testing.T) {
	base := Run{
		ID:             "run-1",
		Niche:          "sleep coaching",
		Geo:            "IT",
		Language:       "it",
		Capabilities:   CapabilityHybrid,
		Status:         RunStatusDraft,
		CurrentStepKey: "A1_NICHE_INTAKE",
		Version:        1,
		StartedAt:      time.Now().UTC(),
		CreatedBy:      "user:alice",
		UpdatedAt:      time.Now().UTC(),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid run rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Run)
	}{
		{"missing id", func(r *Run) { r.ID = "" }},
		{"missing niche", func(r *Run) { r.Niche = " " }},
		{"bad capabilities", func(r *Run) { r.Capabilities = "wizard" }},
		{"bad status", func(r *Run) { r.Status = "paused" }},
		{"zero version", func(r *Run) { r.Version = 0 }},
	}
	for _, tc := range cases {
		run := base
		tc.mutate(&run)
		if err := run.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestApprovalValidate(t *testing.T) {
	approval := Approval{
		ID:             "appr-1",
		RunID:          "run-1",
		CheckpointType: CheckpointNicheBrief,
		Status:         ApprovalStatusPending,
		RequestedBy:    "user:alice",
	}
	if err := approval.Validate(); err != nil {
		t.Fatalf("valid approval rejected: %v", err)
	}

	approval.CheckpointType = "FINAL_SIGNOFF"
	if err := approval.Validate(); err == nil {
		t.Fatalf("expected error for unknown checkpoint type")
	}
}

func TestTerminalRunStatus(t *testing.T) {
	if !IsTerminalRunStatus(RunStatusCompleted) || !IsTerminalRunStatus(RunStatusFailed) || !IsTerminalRunStatus(RunStatusBlocked) {
		t.Fatalf("completed, failed, and blocked are terminal")
	}
	if IsTerminalRunStatus(RunStatusRunning) || IsTerminalRunStatus(RunStatusAwaitingApproval) {
		t.Fatalf("running and awaiting_approval are not terminal")
	}
}

func TestClosedRunStatus(t *testing.T) {
	if !IsClosedRunStatus(RunStatusCompleted) || !IsClosedRunStatus(RunStatusFailed) {
		t.Fatalf("completed and failed are closed")
	}
	if IsClosedRunStatus(RunStatusBlocked) {
		t.Fatalf("blocked runs must stay open to rerun and re-approval")
	}
	if IsClosedRunStatus(RunStatusDraft) || IsClosedRunStatus(RunStatusRunning) {
		t.Fatalf("draft and running are not closed")
	}
}
