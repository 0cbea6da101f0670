package main

import (
	"net/http"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/guardrail"
	"github.com/ventureos-labs/ventureos-go/internal/retrieval"
)

type evaluateResearchRequest struct {
	Sources          []guardrail.Source `json:"sources"`
	EstimatedTokens  int                `json:"estimated_tokens"`
	EstimatedCostUsd float64            `json:"estimated_cost_usd"`
	EnforceStop      *bool              `json:"enforce_stop"`
}

// enforceStop defaults to true; advisory-only evaluation is an
// explicit opt-out.
func (req evaluateResearchRequest) enforceStop() bool {
	return req.EnforceStop == nil || *req.EnforceStop
}

func (api *ventureAPI) handleEvaluateResearch(w http.ResponseWriter, r *http.Request) {
	var req evaluateResearchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	verdict, err := api.evaluator.Evaluate(r.Context(), api.actorInfo(r), guardrail.BatchInput{
		RunID:            r.PathValue("run_id"),
		Sources:          req.Sources,
		EstimatedTokens:  req.EstimatedTokens,
		EstimatedCostUsd: req.EstimatedCostUsd,
		EnforceStop:      req.enforceStop(),
	})
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"allowed":        verdict.Allowed,
		"reason_codes":   verdict.ReasonCodes,
		"warning_codes":  verdict.WarningCodes,
		"unique_domains": verdict.UniqueDomains,
	})
}

type collectResearchRequest struct {
	Niche      string `json:"niche"`
	Geo        string `json:"geo,omitempty"`
	Language   string `json:"language,omitempty"`
	MaxSources int    `json:"max_sources,omitempty"`
}

func (api *ventureAPI) handleCollectResearch(w http.ResponseWriter, r *http.Request) {
	var req collectResearchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Niche) == "" {
		api.writeError(w, r, http.StatusBadRequest, "niche_required")
		return
	}
	sources, err := api.collector.Collect(r.Context(), retrieval.CollectInput{
		Niche:      req.Niche,
		Geo:        req.Geo,
		Language:   req.Language,
		MaxSources: req.MaxSources,
	})
	if err != nil {
		api.logger.Error("research collection failed", "niche", req.Niche, "error", err)
		api.writeError(w, r, http.StatusBadGateway, "collection_failed")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"provider": retrieval.Provider,
		"sources":  sources,
	})
}
