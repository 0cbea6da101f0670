package guardrail

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

// policyDocument is the YAML shape of a stored partial policy, used to
// bootstrap guardrails from config files. Absent keys stay nil and
// fall through during resolution.
type policyDocument struct {
	Scope                  string    `yaml:"scope"`
	RunID                  string    `yaml:"run_id"`
	AllowDomains           []string  `yaml:"allow_domains"`
	BlockDomains           []string  `yaml:"block_domains"`
	MaxSourcesPerBatch     *int      `yaml:"max_sources_per_batch"`
	MaxTokenBudgetPerBatch *int      `yaml:"max_token_budget_per_batch"`
	MaxCostUsdPerBatch     *float64  `yaml:"max_cost_usd_per_batch"`
	RedactPII              *bool     `yaml:"redact_pii"`
	RequiredCheckpoints    []string  `yaml:"required_checkpoints"`
	HardStopRules          []string  `yaml:"hard_stop_rules"`
}

// ParsePolicyDocument decodes one YAML policy document into a stored
// partial policy attributed to updatedBy.
func ParsePolicyDocument(data []byte, updatedBy string) (domain.GuardrailPolicy, error) {
	var doc policyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.GuardrailPolicy{}, fmt.Errorf("parse policy document: %w", err)
	}
	scope := strings.TrimSpace(doc.Scope)
	if scope == "" {
		scope = domain.GuardrailScopeGlobal
	}
	policy := domain.GuardrailPolicy{
		ID:                     uuid.NewString(),
		Scope:                  scope,
		RunID:                  strings.TrimSpace(doc.RunID),
		AllowDomains:           doc.AllowDomains,
		BlockDomains:           doc.BlockDomains,
		MaxSourcesPerBatch:     doc.MaxSourcesPerBatch,
		MaxTokenBudgetPerBatch: doc.MaxTokenBudgetPerBatch,
		MaxCostUsdPerBatch:     doc.MaxCostUsdPerBatch,
		RedactPII:              doc.RedactPII,
		RequiredCheckpoints:    doc.RequiredCheckpoints,
		HardStopRules:          doc.HardStopRules,
		UpdatedBy:              strings.TrimSpace(updatedBy),
		UpdatedAt:              time.Now().UTC(),
	}
	if err := policy.Validate(); err != nil {
		return domain.GuardrailPolicy{}, err
	}
	return policy, nil
}
