package main

import (
	"net/http"
	"strings"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
)

type requestApprovalRequest struct {
	StepKey        string          `json:"step_key,omitempty"`
	CheckpointType string          `json:"checkpoint_type"`
	Payload        domain.Metadata `json:"payload,omitempty"`
}

func (api *ventureAPI) handleRequestApproval(w http.ResponseWriter, r *http.Request) {
	var req requestApprovalRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if !domain.IsValidCheckpointType(req.CheckpointType) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_checkpoint")
		return
	}
	approval, err := api.orchestrator.RequestApproval(
		r.Context(),
		api.auditInfo(r),
		r.PathValue("run_id"),
		req.StepKey,
		req.CheckpointType,
		req.Payload,
	)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, approvalToWire(approval))
}

func (api *ventureAPI) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	approvals, err := api.orchestrator.ListApprovals(r.Context(), runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    runID,
		"approvals": approvalsToWire(approvals),
	})
}

func (api *ventureAPI) handleListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	approvals, err := api.orchestrator.ListPendingApprovals(r.Context(), limit)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"approvals": approvalsToWire(approvals)})
}

func (api *ventureAPI) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	approval, err := api.orchestrator.GetApproval(r.Context(), r.PathValue("approval_id"))
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, approvalToWire(approval))
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
}

func (api *ventureAPI) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if !domain.IsValidDecision(strings.TrimSpace(req.Decision)) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_decision")
		return
	}
	approval, err := api.orchestrator.Decide(
		r.Context(),
		api.auditInfo(r),
		r.PathValue("approval_id"),
		strings.TrimSpace(req.Decision),
		req.Note,
	)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, approvalToWire(approval))
}
