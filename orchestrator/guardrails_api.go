package main

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/guardrail"
)

type effectivePolicyResponse struct {
	RunID                  string   `json:"run_id,omitempty"`
	AllowDomains           []string `json:"allow_domains"`
	BlockDomains           []string `json:"block_domains"`
	MaxSourcesPerBatch     int      `json:"max_sources_per_batch"`
	MaxTokenBudgetPerBatch int      `json:"max_token_budget_per_batch"`
	MaxCostUsdPerBatch     float64  `json:"max_cost_usd_per_batch"`
	RedactPII              bool     `json:"redact_pii"`
	RequiredCheckpoints    []string `json:"required_checkpoints"`
	HardStopRules          []string `json:"hard_stop_rules"`
}

func effectivePolicyToWire(runID string, policy guardrail.EffectivePolicy) effectivePolicyResponse {
	return effectivePolicyResponse{
		RunID:                  runID,
		AllowDomains:           policy.AllowDomains,
		BlockDomains:           policy.BlockDomains,
		MaxSourcesPerBatch:     policy.MaxSourcesPerBatch,
		MaxTokenBudgetPerBatch: policy.MaxTokenBudgetPerBatch,
		MaxCostUsdPerBatch:     policy.MaxCostUsdPerBatch,
		RedactPII:              policy.RedactPII,
		RequiredCheckpoints:    policy.RequiredCheckpoints,
		HardStopRules:          policy.HardStopRules,
	}
}

// handleEffectiveGuardrails resolves the merged policy. Without run_id
// the result is defaults plus the global override.
func (api *ventureAPI) handleEffectiveGuardrails(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))
	policy, err := api.resolver.Resolve(r.Context(), runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, effectivePolicyToWire(runID, policy))
}

type upsertGuardrailRequest struct {
	Scope                  string   `json:"scope"`
	RunID                  string   `json:"run_id,omitempty"`
	AllowDomains           []string `json:"allow_domains,omitempty"`
	BlockDomains           []string `json:"block_domains,omitempty"`
	MaxSourcesPerBatch     *int     `json:"max_sources_per_batch,omitempty"`
	MaxTokenBudgetPerBatch *int     `json:"max_token_budget_per_batch,omitempty"`
	MaxCostUsdPerBatch     *float64 `json:"max_cost_usd_per_batch,omitempty"`
	RedactPII              *bool    `json:"redact_pii,omitempty"`
	RequiredCheckpoints    []string `json:"required_checkpoints,omitempty"`
	HardStopRules          []string `json:"hard_stop_rules,omitempty"`
}

// handleUpsertGuardrails accepts a partial policy as JSON, or as a YAML
// document when the request says so. Absent fields stay unset and fall
// through during resolution.
func (api *ventureAPI) handleUpsertGuardrails(w http.ResponseWriter, r *http.Request) {
	info := api.auditInfo(r)

	var policy domain.GuardrailPolicy
	if isYAMLRequest(r) {
		body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxRequestBody))
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_body")
			return
		}
		policy, err = guardrail.ParsePolicyDocument(body, info.Actor)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_policy")
			return
		}
	} else {
		var req upsertGuardrailRequest
		if err := decodeJSON(r, &req); err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		scope := strings.TrimSpace(req.Scope)
		if scope == "" {
			scope = domain.GuardrailScopeGlobal
		}
		policy = domain.GuardrailPolicy{
			ID:                     uuid.NewString(),
			Scope:                  scope,
			RunID:                  strings.TrimSpace(req.RunID),
			AllowDomains:           req.AllowDomains,
			BlockDomains:           req.BlockDomains,
			MaxSourcesPerBatch:     req.MaxSourcesPerBatch,
			MaxTokenBudgetPerBatch: req.MaxTokenBudgetPerBatch,
			MaxCostUsdPerBatch:     req.MaxCostUsdPerBatch,
			RedactPII:              req.RedactPII,
			RequiredCheckpoints:    req.RequiredCheckpoints,
			HardStopRules:          req.HardStopRules,
			UpdatedBy:              info.Actor,
			UpdatedAt:              time.Now().UTC(),
		}
		if err := policy.Validate(); err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_policy")
			return
		}
	}

	if err := api.orchestrator.UpsertGuardrail(r.Context(), info, policy); err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"policy_id": policy.ID,
		"scope":     policy.Scope,
		"run_id":    policy.RunID,
	})
}

func isYAMLRequest(r *http.Request) bool {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.Contains(contentType, "yaml")
}
