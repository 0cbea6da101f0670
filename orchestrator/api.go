package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minio/minio-go/v7"

	"github.com/ventureos-labs/ventureos-go/internal/auditexport"
	"github.com/ventureos-labs/ventureos-go/internal/guardrail"
	"github.com/ventureos-labs/ventureos-go/internal/orchestrate"
	"github.com/ventureos-labs/ventureos-go/internal/platform/auth"
	"github.com/ventureos-labs/ventureos-go/internal/platform/httpserver"
	"github.com/ventureos-labs/ventureos-go/internal/platform/objectstore"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
	"github.com/ventureos-labs/ventureos-go/internal/retrieval"
)

const maxRequestBody = 1 << 20

type ventureAPIDeps struct {
	orchestrator *orchestrate.Service
	evaluator    *guardrail.Evaluator
	resolver     *guardrail.Resolver
	collector    *retrieval.Collector
	exporter     *auditexport.Service
	objects      *minio.Client
	objCfg       objectstore.Config
}

type ventureAPI struct {
	logger       *slog.Logger
	orchestrator *orchestrate.Service
	evaluator    *guardrail.Evaluator
	resolver     *guardrail.Resolver
	collector    *retrieval.Collector
	exporter     *auditexport.Service
	objects      *minio.Client
	objCfg       objectstore.Config
}

func newVentureAPI(logger *slog.Logger, deps ventureAPIDeps) *ventureAPI {
	return &ventureAPI{
		logger:       logger,
		orchestrator: deps.orchestrator,
		evaluator:    deps.evaluator,
		resolver:     deps.resolver,
		collector:    deps.collector,
		exporter:     deps.exporter,
		objects:      deps.objects,
		objCfg:       deps.objCfg,
	}
}

func (api *ventureAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /runs", api.handleCreateRun)
	mux.HandleFunc("GET /runs", api.handleListRuns)
	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("POST /runs/{run_id}/lock-assumptions", api.handleLockAssumptions)
	mux.HandleFunc("POST /runs/{run_id}/complete", api.handleCompleteRun)

	mux.HandleFunc("GET /runs/{run_id}/steps", api.handleListSteps)
	mux.HandleFunc("GET /runs/{run_id}/steps/{step_key}", api.handleGetStep)
	mux.HandleFunc("GET /runs/{run_id}/steps/{step_key}/can-execute", api.handleCanExecute)
	mux.HandleFunc("POST /runs/{run_id}/steps/{step_key}/output", api.handleRecordOutput)
	mux.HandleFunc("POST /runs/{run_id}/steps/{step_key}/rerun", api.handleRerunStep)

	mux.HandleFunc("POST /runs/{run_id}/approvals", api.handleRequestApproval)
	mux.HandleFunc("GET /runs/{run_id}/approvals", api.handleListApprovals)
	mux.HandleFunc("GET /approvals", api.handleListPendingApprovals)
	mux.HandleFunc("GET /approvals/{approval_id}", api.handleGetApproval)
	mux.HandleFunc("POST /approvals/{approval_id}/decision", api.handleDecide)

	mux.HandleFunc("GET /runs/{run_id}/risk-flags", api.handleListRiskFlags)
	mux.HandleFunc("POST /runs/{run_id}/risk-flags", api.handleAddRiskFlag)
	mux.HandleFunc("POST /risk-flags/{flag_id}/status", api.handleUpdateRiskStatus)

	mux.HandleFunc("GET /runs/{run_id}/scores", api.handleListScores)
	mux.HandleFunc("POST /runs/{run_id}/scores", api.handleAddScore)

	mux.HandleFunc("GET /runs/{run_id}/artifacts", api.handleListArtifacts)
	mux.HandleFunc("POST /runs/{run_id}/artifacts", api.handleCreateArtifact)
	mux.HandleFunc("GET /artifacts/{artifact_id}", api.handleGetArtifact)
	mux.HandleFunc("GET /artifacts/{artifact_id}/content", api.handleArtifactContent)

	mux.HandleFunc("GET /guardrails/effective", api.handleEffectiveGuardrails)
	mux.HandleFunc("POST /guardrails", api.handleUpsertGuardrails)
	mux.HandleFunc("POST /runs/{run_id}/research/evaluate", api.handleEvaluateResearch)
	mux.HandleFunc("POST /research/collect", api.handleCollectResearch)

	mux.HandleFunc("GET /runs/{run_id}/audit", api.handleListRunAudit)
	mux.HandleFunc("GET /audit", api.handleListEntityAudit)
	mux.HandleFunc("POST /runs/{run_id}/audit/export", api.handleExportAudit)
}

// auditInfo attributes a mutation to the authenticated caller.
func (api *ventureAPI) auditInfo(r *http.Request) orchestrate.AuditInfo {
	info := orchestrate.AuditInfo{
		Actor:     "anonymous",
		UserAgent: r.UserAgent(),
		IP:        requestIP(r),
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if actor := identity.Actor(); actor != "" {
			info.Actor = actor
		}
	}
	if requestID, ok := httpserver.RequestIDFromContext(r.Context()); ok {
		info.RequestID = requestID
	}
	return info
}

func (api *ventureAPI) actorInfo(r *http.Request) guardrail.ActorInfo {
	info := api.auditInfo(r)
	return guardrail.ActorInfo{
		Actor:     info.Actor,
		RequestID: info.RequestID,
		UserAgent: info.UserAgent,
		IP:        info.IP,
	}
}

func (api *ventureAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *ventureAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	requestID, _ := httpserver.RequestIDFromContext(r.Context())
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestID,
	})
}

// serviceError maps the domain error taxonomy onto HTTP statuses.
func (api *ventureAPI) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, orchestrate.ErrAlreadyDecided):
		api.writeError(w, r, http.StatusConflict, "already_decided")
	case errors.Is(err, orchestrate.ErrInvalidState):
		api.writeError(w, r, http.StatusConflict, "invalid_state")
	case errors.Is(err, orchestrate.ErrPreconditionFailed):
		api.writeError(w, r, http.StatusPreconditionFailed, "precondition_failed")
	case isUniqueViolation(err):
		api.writeError(w, r, http.StatusConflict, "conflict")
	default:
		api.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	return decodeJSONLimited(r, dst, maxRequestBody)
}

func decodeJSONLimited(r *http.Request, dst any, limit int64) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return errors.New("multiple JSON values")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func requestIP(r *http.Request) net.IP {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(strings.TrimSpace(r.RemoteAddr))
	}
	return net.ParseIP(host)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
