package main

import (
	"net/http"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/orchestrate"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

type createRunRequest struct {
	Niche        string   `json:"niche"`
	Geo          string   `json:"geo"`
	Language     string   `json:"language"`
	Constraints  []string `json:"constraints,omitempty"`
	Capabilities string   `json:"capabilities"`
	Seed         string   `json:"seed,omitempty"`
}

func (api *ventureAPI) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Niche) == "" || strings.TrimSpace(req.Geo) == "" ||
		strings.TrimSpace(req.Language) == "" || strings.TrimSpace(req.Capabilities) == "" {
		api.writeError(w, r, http.StatusBadRequest, "invalid_run")
		return
	}
	run, err := api.orchestrator.CreateRun(r.Context(), api.auditInfo(r), orchestrate.CreateRunInput{
		Niche:        req.Niche,
		Geo:          req.Geo,
		Language:     req.Language,
		Constraints:  req.Constraints,
		Capabilities: req.Capabilities,
		Seed:         req.Seed,
	})
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, runResponse(run))
}

func (api *ventureAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Limit:  clampInt(parseIntQuery(r, "limit", 100), 1, 500),
	}
	if filter.Status != "" && !domain.IsValidRunStatus(filter.Status) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_status")
		return
	}
	runs, err := api.orchestrator.ListRuns(r.Context(), filter)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (api *ventureAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	ctx := r.Context()

	run, err := api.orchestrator.GetRun(ctx, runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	steps, err := api.orchestrator.ListSteps(ctx, runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	approvals, err := api.orchestrator.ListApprovals(ctx, runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	risks, err := api.orchestrator.ListRiskFlags(ctx, runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	scores, err := api.orchestrator.ListTopScores(ctx, runID, 5)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}

	api.writeJSON(w, http.StatusOK, map[string]any{
		"run":        runResponse(run),
		"steps":      stepsToWire(steps),
		"approvals":  approvalsToWire(approvals),
		"risk_flags": riskFlagsToWire(risks),
		"top_scores": scoresToWire(scores),
	})
}

type lockAssumptionsRequest struct {
	Assumptions domain.Metadata `json:"assumptions"`
}

func (api *ventureAPI) handleLockAssumptions(w http.ResponseWriter, r *http.Request) {
	var req lockAssumptionsRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	runID := r.PathValue("run_id")
	if err := api.orchestrator.LockAssumptions(r.Context(), api.auditInfo(r), runID, req.Assumptions); err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "locked": true})
}

type completeRunRequest struct {
	Status string `json:"status"`
}

func (api *ventureAPI) handleCompleteRun(w http.ResponseWriter, r *http.Request) {
	var req completeRunRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	runID := r.PathValue("run_id")
	if err := api.orchestrator.CompleteRun(r.Context(), api.auditInfo(r), runID, req.Status); err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "status": req.Status})
}

func runResponse(run domain.Run) map[string]any {
	return map[string]any{
		"run_id":             run.ID,
		"niche":              run.Niche,
		"geo":                run.Geo,
		"language":           run.Language,
		"constraints":        run.Constraints,
		"capabilities":       run.Capabilities,
		"status":             run.Status,
		"current_step_key":   run.CurrentStepKey,
		"locked_assumptions": run.LockedAssumptions,
		"seed":               run.Seed,
		"version":            run.Version,
		"started_at":         run.StartedAt,
		"completed_at":       run.CompletedAt,
		"created_by":         run.CreatedBy,
		"updated_at":         run.UpdatedAt,
	}
}
