package postgres

import (
	"strings"
	"testing"
)

func TestDecideApprovalQueryGuardsPendingStatus(t *testing.T) {
	if !strings.Contains(decideApprovalQuery, "status = $6") {
		t.Fatalf("expected pending-status guard in decide query")
	}
	if !strings.Contains(decideApprovalQuery, "WHERE approval_id = $5") {
		t.Fatalf("expected approval_id predicate in decide query")
	}
}

func TestLatestApprovedQueryOrdersNewestFirst(t *testing.T) {
	if !strings.Contains(latestApprovedQuery, "ORDER BY updated_at DESC") {
		t.Fatalf("expected newest-first ordering in latest-approved query")
	}
	if !strings.Contains(latestApprovedQuery, "LIMIT 1") {
		t.Fatalf("expected single-row limit in latest-approved query")
	}
	if !strings.Contains(latestApprovedQuery, "checkpoint_type = $2") {
		t.Fatalf("expected checkpoint_type predicate in latest-approved query")
	}
}

func TestLockAssumptionsQueryIsWriteOnce(t *testing.T) {
	if !strings.Contains(lockAssumptionsQuery, "locked_assumptions IS NULL") {
		t.Fatalf("expected null guard so an existing lock is never overwritten")
	}
}

func TestMarkRerunQueryResetsStepState(t *testing.T) {
	if !strings.Contains(markRerunQuery, "retry_count = retry_count + 1") {
		t.Fatalf("expected retry counter increment in rerun query")
	}
	if !strings.Contains(markRerunQuery, "finished_at = NULL") {
		t.Fatalf("expected finished_at reset in rerun query")
	}
}

func TestUpsertGuardrailQueryConflictsOnScope(t *testing.T) {
	// The conflict target must match the unique index expression
	// (scope, (COALESCE(run_id, ''))) exactly for inference to work.
	if !strings.Contains(upsertGuardrailQuery, "ON CONFLICT (scope, (COALESCE(run_id, '')))") {
		t.Fatalf("expected scope conflict clause in guardrail upsert")
	}
	if !strings.Contains(upsertGuardrailQuery, "DO UPDATE SET") {
		t.Fatalf("expected upsert semantics in guardrail query")
	}
}
