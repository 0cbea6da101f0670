package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

type GuardrailStore struct {
	db DB
}

func NewGuardrailStore(db DB) *GuardrailStore {
	if db == nil {
		return nil
	}
	return &GuardrailStore{db: db}
}

const guardrailColumns = `policy_id, scope, run_id, allow_domains, block_domains,
	max_sources_per_batch, max_token_budget_per_batch, max_cost_usd_per_batch,
	redact_pii, required_checkpoints, hard_stop_rules, updated_by, updated_at`

const upsertGuardrailQuery = `INSERT INTO venture_guardrails (
		policy_id,
		scope,
		run_id,
		allow_domains,
		block_domains,
		max_sources_per_batch,
		max_token_budget_per_batch,
		max_cost_usd_per_batch,
		redact_pii,
		required_checkpoints,
		hard_stop_rules,
		updated_by,
		updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	ON CONFLICT (scope, (COALESCE(run_id, ''))) DO UPDATE SET
		allow_domains = EXCLUDED.allow_domains,
		block_domains = EXCLUDED.block_domains,
		max_sources_per_batch = EXCLUDED.max_sources_per_batch,
		max_token_budget_per_batch = EXCLUDED.max_token_budget_per_batch,
		max_cost_usd_per_batch = EXCLUDED.max_cost_usd_per_batch,
		redact_pii = EXCLUDED.redact_pii,
		required_checkpoints = EXCLUDED.required_checkpoints,
		hard_stop_rules = EXCLUDED.hard_stop_rules,
		updated_by = EXCLUDED.updated_by,
		updated_at = EXCLUDED.updated_at`

func (s *GuardrailStore) GetGlobal(ctx context.Context) (domain.GuardrailPolicy, error) {
	if s == nil || s.db == nil {
		return domain.GuardrailPolicy{}, fmt.Errorf("guardrail store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+guardrailColumns+` FROM venture_guardrails WHERE scope = $1`,
		domain.GuardrailScopeGlobal,
	)
	policy, err := scanGuardrailPolicy(row)
	if err != nil {
		return domain.GuardrailPolicy{}, handleNotFound(err)
	}
	return policy, nil
}

func (s *GuardrailStore) GetForRun(ctx context.Context, runID string) (domain.GuardrailPolicy, error) {
	if s == nil || s.db == nil {
		return domain.GuardrailPolicy{}, fmt.Errorf("guardrail store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return domain.GuardrailPolicy{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+guardrailColumns+` FROM venture_guardrails WHERE scope = $1 AND run_id = $2`,
		domain.GuardrailScopeRun,
		runID,
	)
	policy, err := scanGuardrailPolicy(row)
	if err != nil {
		return domain.GuardrailPolicy{}, handleNotFound(err)
	}
	return policy, nil
}

// Upsert replaces the single policy row for the scope. A unique index
// on (scope, (COALESCE(run_id, ''))) carries the at-most-one invariant
// for both scopes; global rows store run_id as null. The conflict
// target must name that exact expression or inference fails.
func (s *GuardrailStore) Upsert(ctx context.Context, policy domain.GuardrailPolicy) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("guardrail store not initialized")
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	allowJSON, err := encodeNullableStrings(policy.AllowDomains)
	if err != nil {
		return fmt.Errorf("encode allow domains: %w", err)
	}
	blockJSON, err := encodeNullableStrings(policy.BlockDomains)
	if err != nil {
		return fmt.Errorf("encode block domains: %w", err)
	}
	checkpointsJSON, err := encodeNullableStrings(policy.RequiredCheckpoints)
	if err != nil {
		return fmt.Errorf("encode required checkpoints: %w", err)
	}
	rulesJSON, err := encodeNullableStrings(policy.HardStopRules)
	if err != nil {
		return fmt.Errorf("encode hard stop rules: %w", err)
	}
	var maxSources sql.NullInt64
	if policy.MaxSourcesPerBatch != nil {
		maxSources = sql.NullInt64{Int64: int64(*policy.MaxSourcesPerBatch), Valid: true}
	}
	var maxTokens sql.NullInt64
	if policy.MaxTokenBudgetPerBatch != nil {
		maxTokens = sql.NullInt64{Int64: int64(*policy.MaxTokenBudgetPerBatch), Valid: true}
	}
	var maxCost sql.NullFloat64
	if policy.MaxCostUsdPerBatch != nil {
		maxCost = sql.NullFloat64{Float64: *policy.MaxCostUsdPerBatch, Valid: true}
	}
	var redactPII sql.NullBool
	if policy.RedactPII != nil {
		redactPII = sql.NullBool{Bool: *policy.RedactPII, Valid: true}
	}

	_, err = s.db.ExecContext(
		ctx,
		upsertGuardrailQuery,
		strings.TrimSpace(policy.ID),
		strings.TrimSpace(policy.Scope),
		nullIfEmpty(policy.RunID),
		allowJSON,
		blockJSON,
		maxSources,
		maxTokens,
		maxCost,
		redactPII,
		checkpointsJSON,
		rulesJSON,
		strings.TrimSpace(policy.UpdatedBy),
		normalizeTime(policy.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert guardrail policy: %w", err)
	}
	return nil
}

func scanGuardrailPolicy(row rowScanner) (domain.GuardrailPolicy, error) {
	var policy domain.GuardrailPolicy
	var runID sql.NullString
	var allowJSON []byte
	var blockJSON []byte
	var maxSources sql.NullInt64
	var maxTokens sql.NullInt64
	var maxCost sql.NullFloat64
	var redactPII sql.NullBool
	var checkpointsJSON []byte
	var rulesJSON []byte
	var updatedAt time.Time
	if err := row.Scan(
		&policy.ID,
		&policy.Scope,
		&runID,
		&allowJSON,
		&blockJSON,
		&maxSources,
		&maxTokens,
		&maxCost,
		&redactPII,
		&checkpointsJSON,
		&rulesJSON,
		&policy.UpdatedBy,
		&updatedAt,
	); err != nil {
		return domain.GuardrailPolicy{}, err
	}
	policy.UpdatedAt = updatedAt.UTC()
	if runID.Valid {
		policy.RunID = runID.String
	}
	if maxSources.Valid {
		v := int(maxSources.Int64)
		policy.MaxSourcesPerBatch = &v
	}
	if maxTokens.Valid {
		v := int(maxTokens.Int64)
		policy.MaxTokenBudgetPerBatch = &v
	}
	if maxCost.Valid {
		v := maxCost.Float64
		policy.MaxCostUsdPerBatch = &v
	}
	if redactPII.Valid {
		v := redactPII.Bool
		policy.RedactPII = &v
	}
	allow, err := decodeNullableStrings(allowJSON)
	if err != nil {
		return domain.GuardrailPolicy{}, fmt.Errorf("decode allow domains: %w", err)
	}
	policy.AllowDomains = allow
	block, err := decodeNullableStrings(blockJSON)
	if err != nil {
		return domain.GuardrailPolicy{}, fmt.Errorf("decode block domains: %w", err)
	}
	policy.BlockDomains = block
	checkpoints, err := decodeNullableStrings(checkpointsJSON)
	if err != nil {
		return domain.GuardrailPolicy{}, fmt.Errorf("decode required checkpoints: %w", err)
	}
	policy.RequiredCheckpoints = checkpoints
	rules, err := decodeNullableStrings(rulesJSON)
	if err != nil {
		return domain.GuardrailPolicy{}, fmt.Errorf("decode hard stop rules: %w", err)
	}
	policy.HardStopRules = rules
	return policy, nil
}
