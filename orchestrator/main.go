package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/auditexport"
	"github.com/ventureos-labs/ventureos-go/internal/guardrail"
	"github.com/ventureos-labs/ventureos-go/internal/orchestrate"
	"github.com/ventureos-labs/ventureos-go/internal/platform/auditlog"
	"github.com/ventureos-labs/ventureos-go/internal/platform/auth"
	"github.com/ventureos-labs/ventureos-go/internal/platform/env"
	"github.com/ventureos-labs/ventureos-go/internal/platform/httpserver"
	"github.com/ventureos-labs/ventureos-go/internal/platform/objectstore"
	"github.com/ventureos-labs/ventureos-go/internal/platform/postgres"
	repopg "github.com/ventureos-labs/ventureos-go/internal/repo/postgres"
	"github.com/ventureos-labs/ventureos-go/internal/retrieval"
)

const serviceName = "orchestrator"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("ORCHESTRATOR_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("ORCHESTRATOR_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	objCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	objects, err := objectstore.NewMinIOClient(objCfg)
	if err != nil {
		logger.Error("object store client failed", "error", err)
		os.Exit(1)
	}
	if err := objectstore.EnsureBuckets(ctx, objects, objCfg); err != nil {
		logger.Error("object store buckets unavailable", "error", err)
		os.Exit(1)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	var authenticator auth.Authenticator
	var oidcService *auth.OIDCService
	switch authCfg.Mode {
	case auth.ModeOIDC:
		oidcService, err = auth.NewOIDCService(ctx, authCfg)
		if err != nil {
			logger.Error("oidc init failed", "error", err)
			os.Exit(1)
		}
		authenticator = oidcService
	case auth.ModeDev:
		authenticator = auth.NewDevAuthenticator(authCfg)
	case auth.ModeDisabled:
		authenticator = nil
	}

	store := repopg.NewStore(db)
	orchestrator := orchestrate.New(store, serviceName)
	evaluator := guardrail.NewEvaluator(store)
	resolver := guardrail.NewResolver(store.Guardrails())
	collector := retrieval.NewCollector()
	exporter := auditexport.NewService(store.Audit(), objects, objCfg.BucketAudit)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			serviceName,
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "objectstore",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
					defer cancel()
					return objectstore.CheckBuckets(checkCtx, objects, objCfg)
				},
			},
		),
	)

	if oidcService != nil {
		login, err := oidcService.LoginHandler()
		if err != nil {
			logger.Error("oidc login handler failed", "error", err)
			os.Exit(1)
		}
		callback, err := oidcService.CallbackHandler()
		if err != nil {
			logger.Error("oidc callback handler failed", "error", err)
			os.Exit(1)
		}
		mux.HandleFunc("GET /auth/login", login)
		mux.HandleFunc("GET /auth/callback", callback)
		mux.HandleFunc("POST /auth/logout", oidcService.LogoutHandler())
		mux.HandleFunc("GET /auth/session", oidcService.SessionHandler())
	}

	api := newVentureAPI(logger, ventureAPIDeps{
		orchestrator: orchestrator,
		evaluator:    evaluator,
		resolver:     resolver,
		collector:    collector,
		exporter:     exporter,
		objects:      objects,
		objCfg:       objCfg,
	})
	api.register(mux)

	var handler http.Handler = mux
	if authCfg.Mode != auth.ModeDisabled {
		handler = auth.Middleware{
			Logger:        logger,
			Authenticator: authenticator,
			Authorize:     auth.MethodRoleAuthorizer(),
			Audit: func(ctx context.Context, event auth.DenyEvent) error {
				auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return auditlog.InsertAuthDeny(auditCtx, db, serviceName, event)
			},
			SkipPrefixes: []string{"/healthz", "/readyz", "/auth/"},
		}.Wrap(mux)
	}

	cfg := httpserver.Config{
		Service:         serviceName,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, serviceName, handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
