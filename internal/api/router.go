// Package api provides the HTTP API for GreenRoute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/api/handler"
	"github.com/greenroute/greenroute/internal/api/middleware"
	"github.com/greenroute/greenroute/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Planner   handler.RoutePlanner
	GVI       handler.GVIService
	Months    handler.MonthSource
	Sites     handler.SiteFinder
	Rebuilder handler.DGVIRebuilder
	DB        handler.Pinger
	Registry  *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "greenroute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Registry)
	planHandler := handler.NewPlanHandler(cfg.Planner, cfg.Months)
	gviHandler := handler.NewGVIHandler(cfg.GVI)
	sitesHandler := handler.NewSitesHandler(cfg.Sites)
	adminHandler := handler.NewAdminHandler(cfg.Rebuilder)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Planning endpoint - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/plan-routes", planHandler.PlanRoutes)

		// Green-view data endpoints - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/available-months", gviHandler.AvailableMonths)
			r.Get("/dgvi-stats/{month}", gviHandler.MonthStats)
			r.Get("/gvi-points/{month}", gviHandler.PointsForMonth)
			r.Get("/nearby-sites", sitesHandler.NearbySites)
		})

		// Point ingestion calls the remote greenness model - expensive tier
		r.With(expensiveRateLimit).Post("/add-gvi-points", gviHandler.AddPoints)

		// Admin endpoints - internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Post("/update-dgvi", adminHandler.UpdateDGVI)
		})
	})

	return r
}
