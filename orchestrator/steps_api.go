package main

import (
	"net/http"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/orchestrate"
)

func (api *ventureAPI) handleListSteps(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	steps, err := api.orchestrator.ListSteps(r.Context(), runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "steps": stepsToWire(steps)})
}

func (api *ventureAPI) handleGetStep(w http.ResponseWriter, r *http.Request) {
	step, err := api.orchestrator.GetStep(r.Context(), r.PathValue("run_id"), r.PathValue("step_key"))
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, stepToWire(step))
}

func (api *ventureAPI) handleCanExecute(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	stepKey := r.PathValue("step_key")
	allowed, reason, err := api.orchestrator.CanExecute(r.Context(), runID, stepKey)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      runID,
		"step_key":    stepKey,
		"can_execute": allowed,
		"reason":      reason,
	})
}

type recordOutputRequest struct {
	Status       string          `json:"status"`
	Output       domain.Metadata `json:"output,omitempty"`
	EvidenceRefs []string        `json:"evidence_refs,omitempty"`
}

func (api *ventureAPI) handleRecordOutput(w http.ResponseWriter, r *http.Request) {
	var req recordOutputRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if !domain.IsValidStepOutcome(req.Status) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_outcome")
		return
	}
	step, err := api.orchestrator.RecordStepOutput(
		r.Context(),
		api.auditInfo(r),
		r.PathValue("run_id"),
		r.PathValue("step_key"),
		orchestrate.StepOutcome{
			Status:       req.Status,
			Output:       req.Output,
			EvidenceRefs: req.EvidenceRefs,
		},
	)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, stepToWire(step))
}

func (api *ventureAPI) handleRerunStep(w http.ResponseWriter, r *http.Request) {
	step, err := api.orchestrator.RerunStep(r.Context(), api.auditInfo(r), r.PathValue("run_id"), r.PathValue("step_key"))
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, stepToWire(step))
}
