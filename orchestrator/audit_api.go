package main

import (
	"net/http"
	"strings"
)

func (api *ventureAPI) handleListRunAudit(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	records, err := api.orchestrator.ListAuditByRun(r.Context(), runID, limit)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"records": auditRecordsToWire(records),
	})
}

func (api *ventureAPI) handleListEntityAudit(w http.ResponseWriter, r *http.Request) {
	entityType := strings.TrimSpace(r.URL.Query().Get("entity_type"))
	entityID := strings.TrimSpace(r.URL.Query().Get("entity_id"))
	if entityType == "" || entityID == "" {
		api.writeError(w, r, http.StatusBadRequest, "entity_required")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", 100), 1, 500)
	records, err := api.orchestrator.ListAuditByEntity(r.Context(), entityType, entityID, limit)
	if err != nil {
		api.serviceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"entity_type": entityType,
		"entity_id":   entityID,
		"records":     auditRecordsToWire(records),
	})
}

// handleExportAudit snapshots a run's trail to the object store. The
// export itself is not audited; it mutates nothing.
func (api *ventureAPI) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if _, err := api.orchestrator.GetRun(r.Context(), runID); err != nil {
		api.serviceError(w, r, err)
		return
	}
	key, count, err := api.exporter.ExportRun(r.Context(), runID)
	if err != nil {
		api.logger.Error("audit export failed", "run_id", runID, "error", err)
		api.writeError(w, r, http.StatusBadGateway, "export_failed")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     runID,
		"object_key": key,
		"records":    count,
	})
}
