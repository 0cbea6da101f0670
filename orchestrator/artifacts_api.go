package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/ventureos-labs/ventureos-go/internal/orchestrate"
)

// Artifact content is capped well above the JSON request limit since
// step outputs can carry full documents.
const maxArtifactContent = 8 << 20

var artifactContentTypes = map[string]string{
	"markdown": "text/markdown; charset=utf-8",
	"json":     "application/json",
	"csv":      "text/csv; charset=utf-8",
	"html":     "text/html; charset=utf-8",
	"text":     "text/plain; charset=utf-8",
}

func (api *ventureAPI) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	artifacts, err := api.orchestrator.ListArtifacts(r.Context(), runID)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    runID,
		"artifacts": artifactsToWire(artifacts),
	})
}

type createArtifactRequest struct {
	StepKey      string   `json:"step_key,omitempty"`
	ArtifactType string   `json:"artifact_type"`
	Format       string   `json:"format"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// handleCreateArtifact uploads the content body first, then records the
// metadata row. An orphaned object after a failed insert is harmless;
// nothing references it.
func (api *ventureAPI) handleCreateArtifact(w http.ResponseWriter, r *http.Request) {
	var req createArtifactRequest
	if err := decodeArtifactJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.ArtifactType) == "" || strings.TrimSpace(req.Format) == "" ||
		strings.TrimSpace(req.Title) == "" || req.Content == "" {
		api.writeError(w, r, http.StatusBadRequest, "invalid_artifact")
		return
	}
	contentType, ok := artifactContentTypes[strings.TrimSpace(req.Format)]
	if !ok {
		api.writeError(w, r, http.StatusBadRequest, "unsupported_format")
		return
	}

	runID := r.PathValue("run_id")
	if _, err := api.orchestrator.GetRun(r.Context(), runID); err != nil {
		api.serviceError(w, r, err)
		return
	}

	objectKey := fmt.Sprintf("runs/%s/%s/%s-%s", runID, strings.TrimSpace(req.ArtifactType),
		time.Now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	content := []byte(req.Content)
	_, err := api.objects.PutObject(
		r.Context(),
		api.objCfg.BucketArtifacts,
		objectKey,
		bytes.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		api.logger.Error("artifact upload failed", "run_id", runID, "error", err)
		api.writeError(w, r, http.StatusBadGateway, "object_store_unavailable")
		return
	}

	artifact, err := api.orchestrator.CreateArtifact(r.Context(), api.auditInfo(r), orchestrate.ArtifactInput{
		RunID:        runID,
		StepKey:      req.StepKey,
		ArtifactType: req.ArtifactType,
		Format:       req.Format,
		Title:        req.Title,
		ObjectKey:    objectKey,
		EvidenceRefs: req.EvidenceRefs,
	})
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, artifactToWire(artifact))
}

func (api *ventureAPI) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, err := api.orchestrator.GetArtifact(r.Context(), r.PathValue("artifact_id"))
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, artifactToWire(artifact))
}

func (api *ventureAPI) handleArtifactContent(w http.ResponseWriter, r *http.Request) {
	artifact, err := api.orchestrator.GetArtifact(r.Context(), r.PathValue("artifact_id"))
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	object, err := api.objects.GetObject(r.Context(), api.objCfg.BucketArtifacts, artifact.ObjectKey, minio.GetObjectOptions{})
	if err != nil {
		api.logger.Error("artifact download failed", "artifact_id", artifact.ID, "error", err)
		api.writeError(w, r, http.StatusBadGateway, "object_store_unavailable")
		return
	}
	defer func() { _ = object.Close() }()

	contentType := artifactContentTypes[artifact.Format]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, object)
}

func decodeArtifactJSON(r *http.Request, dst *createArtifactRequest) error {
	return decodeJSONLimited(r, dst, maxArtifactContent)
}
