package main

import (
	"net/http"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/orchestrate"
)

func (api *ventureAPI) handleListRiskFlags(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	flags, err := api.orchestrator.ListRiskFlags(r.Context(), runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     runID,
		"risk_flags": riskFlagsToWire(flags),
	})
}

type addRiskFlagRequest struct {
	Scope       string `json:"scope"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Mitigation  string `json:"mitigation,omitempty"`
}

func (api *ventureAPI) handleAddRiskFlag(w http.ResponseWriter, r *http.Request) {
	var req addRiskFlagRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if !domain.IsValidRiskScope(req.Scope) || !domain.IsValidRiskSeverity(req.Severity) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_risk_flag")
		return
	}
	flag, err := api.orchestrator.AddRiskFlag(r.Context(), api.auditInfo(r), orchestrate.RiskFlagInput{
		RunID:       r.PathValue("run_id"),
		Scope:       req.Scope,
		Severity:    req.Severity,
		Title:       req.Title,
		Description: req.Description,
		Mitigation:  req.Mitigation,
	})
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, riskFlagToWire(flag))
}

type updateRiskStatusRequest struct {
	Status string `json:"status"`
}

func (api *ventureAPI) handleUpdateRiskStatus(w http.ResponseWriter, r *http.Request) {
	var req updateRiskStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if !domain.IsValidRiskStatus(req.Status) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_status")
		return
	}
	flagID := r.PathValue("flag_id")
	if err := api.orchestrator.UpdateRiskStatus(r.Context(), api.auditInfo(r), flagID, req.Status); err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"flag_id": flagID, "status": req.Status})
}
