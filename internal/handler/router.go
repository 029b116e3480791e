package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-interview/backend/internal/config"
	catalogHandler "github.com/zhouzirui/visa-interview/backend/internal/handler/catalog"
	interviewHandler "github.com/zhouzirui/visa-interview/backend/internal/handler/interview"
	middlewarePkg "github.com/zhouzirui/visa-interview/backend/internal/middleware"
	"github.com/zhouzirui/visa-interview/backend/internal/service/advisor"
	interviewService "github.com/zhouzirui/visa-interview/backend/internal/service/interview"
	"github.com/zhouzirui/visa-interview/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(interviewSvc *interviewService.Service, advisorSvc *advisor.Service, authCfg config.AuthConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	interviews := interviewHandler.New(interviewSvc, advisorSvc, logger.Named("interview"))
	catalogs := catalogHandler.New(interviewSvc.Catalog())

	// Reset is open when no secret is configured.
	var adminOnly []func(http.Handler) http.Handler
	if authCfg.Enabled() {
		adminOnly = append(adminOnly,
			middlewarePkg.JWTAuth(authCfg.JWTSecret),
			middlewarePkg.RequireRole(middlewarePkg.RoleAdmin),
		)
	} else {
		logger.Warn("AUTH_JWT_SECRET not set, interview reset is unauthenticated")
	}

	r.Route("/api", func(api chi.Router) {
		interviews.RegisterRoutes(api, adminOnly...)
		catalogs.RegisterRoutes(api)
	})

	return r
}
