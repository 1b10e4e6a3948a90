// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	accountfeature "github.com/dalemusser/questhub/internal/app/features/account"
	adminfeature "github.com/dalemusser/questhub/internal/app/features/admin"
	auditlogfeature "github.com/dalemusser/questhub/internal/app/features/auditlog"
	coderunfeature "github.com/dalemusser/questhub/internal/app/features/coderun"
	gamificationfeature "github.com/dalemusser/questhub/internal/app/features/gamification"
	groupsfeature "github.com/dalemusser/questhub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/questhub/internal/app/features/health"
	masteryfeature "github.com/dalemusser/questhub/internal/app/features/mastery"
	notificationsfeature "github.com/dalemusser/questhub/internal/app/features/notifications"
	projectsfeature "github.com/dalemusser/questhub/internal/app/features/projects"
	tasksfeature "github.com/dalemusser/questhub/internal/app/features/tasks"
	templatesfeature "github.com/dalemusser/questhub/internal/app/features/templates"
	uploadsfeature "github.com/dalemusser/questhub/internal/app/features/uploads"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Services is fully populated.
//
// QuestHub is a JSON API: every feature router is mounted under /api, with
// /health and /metrics at the root for health checkers and scrapers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	if err := sessionMgr.EnableTokens(appCfg.JWTSecret, appCfg.TokenTTL); err != nil {
		logger.Error("bearer token init failed", zap.Error(err))
		return nil, err
	}

	// Fresh user data on each request, so role changes and deactivation
	// take effect immediately.
	db := deps.MongoDatabase
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	svc := deps.Services

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Instrument)

	// Loads the signed-in user (cookie or bearer token) into the context.
	r.Use(sessionMgr.LoadUser)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, svc.Notifier, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	// Locally stored uploads are served straight from disk; the S3 backend
	// hands out its own URLs.
	if local := svc.LocalFiles; local != nil {
		r.Handle(local.URLPrefix()+"/*", fileserver.Handler(local.URLPrefix(), local.Dir()))
	}

	taskHandler := tasksfeature.NewHandler(svc.Engine, logger)

	r.Route("/api", func(api chi.Router) {
		accountHandler := accountfeature.NewHandler(db, sessionMgr, svc.LoginLimiter, svc.AuditLog, appCfg.AllowTeacherSignup, logger)
		api.Mount("/auth", accountfeature.AuthRoutes(accountHandler))
		api.Mount("/me", accountfeature.MeRoutes(accountHandler, sessionMgr))

		projectsHandler := projectsfeature.NewHandler(db, svc.Templates, svc.AuditLog, logger)
		api.Mount("/projects", projectsfeature.Routes(projectsHandler, taskHandler, sessionMgr))
		api.Mount("/tasks", tasksfeature.Routes(taskHandler, sessionMgr))

		groupsHandler := groupsfeature.NewHandler(db, svc.AuditLog, logger)
		api.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

		notificationsHandler := notificationsfeature.NewHandler(db, logger)
		api.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

		gamificationHandler := gamificationfeature.NewHandler(db, logger)
		api.Mount("/gamification", gamificationfeature.Routes(gamificationHandler, sessionMgr))

		masteryHandler := masteryfeature.NewHandler(db, svc.AuditLog, logger)
		api.Mount("/users", masteryfeature.Routes(masteryHandler, sessionMgr))

		uploadsHandler := uploadsfeature.NewHandler(svc.Objects, logger)
		api.Mount("/uploads", uploadsfeature.Routes(uploadsHandler, sessionMgr))

		templatesHandler := templatesfeature.NewHandler(svc.Templates, logger)
		api.Mount("/templates", templatesfeature.Routes(templatesHandler, sessionMgr))

		coderunHandler := coderunfeature.NewHandler(svc.CodeExec, logger)
		api.Mount("/code", coderunfeature.Routes(coderunHandler, sessionMgr))

		// The audit log lives under /api/admin; its more specific mount is
		// registered first.
		auditHandler := auditlogfeature.NewHandler(db, logger)
		api.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

		adminHandler := adminfeature.NewHandler(db, svc.AuditLog, logger)
		api.Mount("/admin", adminfeature.Routes(adminHandler, sessionMgr))
	})

	return r, nil
}
