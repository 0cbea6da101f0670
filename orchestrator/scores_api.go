package main

import (
	"net/http"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/orchestrate"
)

func (api *ventureAPI) handleListScores(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	limit := clampInt(parseIntQuery(r, "limit", 20), 1, 100)
	scores, err := api.orchestrator.ListTopScores(r.Context(), runID, limit)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"scores": scoresToWire(scores),
	})
}

type addScoreRequest struct {
	IdeaKey       string          `json:"idea_key"`
	RubricVersion string          `json:"rubric_version"`
	Dimensions    domain.Metadata `json:"dimensions,omitempty"`
	Weights       domain.Metadata `json:"weights,omitempty"`
	OverallScore  float64         `json:"overall_score"`
	Unknowns      []string        `json:"unknowns,omitempty"`
}

func (api *ventureAPI) handleAddScore(w http.ResponseWriter, r *http.Request) {
	var req addScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	score, err := api.orchestrator.AddIdeaScore(r.Context(), api.auditInfo(r), orchestrate.IdeaScoreInput{
		RunID:         r.PathValue("run_id"),
		IdeaKey:       req.IdeaKey,
		RubricVersion: req.RubricVersion,
		Dimensions:    req.Dimensions,
		Weights:       req.Weights,
		OverallScore:  req.OverallScore,
		Unknowns:      req.Unknowns,
	})
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, scoreToWire(score))
}
