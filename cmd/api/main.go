// Package main provides the entrypoint for the GreenRoute API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/api"
	"github.com/greenroute/greenroute/internal/api/middleware"
	"github.com/greenroute/greenroute/internal/config"
	"github.com/greenroute/greenroute/internal/database"
	"github.com/greenroute/greenroute/internal/dgvi"
	"github.com/greenroute/greenroute/internal/gvi"
	"github.com/greenroute/greenroute/internal/gvi/geoai"
	"github.com/greenroute/greenroute/internal/pathfinder"
	"github.com/greenroute/greenroute/internal/planner"
	"github.com/greenroute/greenroute/internal/provider/resilience"
	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/internal/telemetry"
	"github.com/greenroute/greenroute/internal/transitfeed"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "greenroute-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting GreenRoute API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	engine := config.FromEnv()

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to the spatial store
	dbConfig := database.ConfigFromEnv()
	dbConfig.MaxOpenConns = engine.DBPoolSize
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("spatial store connected")

	// Repositories
	spatialRepo := spatial.NewPostgresRepository(pool)
	gviRepo := gvi.NewPostgresRepository(pool)

	// External providers with shared circuit-breaker registry
	feedHTTP := resilience.NewClient(resilience.DefaultClientConfig(transitfeed.ProviderName))
	resilience.GlobalRegistry.Register(transitfeed.ProviderName, feedHTTP)
	feedClient := transitfeed.NewClient(transitfeed.ClientConfig{
		BaseURL:    os.Getenv("TRANSIT_FEED_BASE_URL"),
		HTTPClient: feedHTTP,
		Logger:     log,
	})

	greennessHTTP := resilience.NewClient(resilience.DefaultClientConfig(geoai.ProviderName))
	resilience.GlobalRegistry.Register(geoai.ProviderName, greennessHTTP)
	greennessClient := geoai.NewClient(geoai.ClientConfig{
		BaseURL:    os.Getenv("GREENNESS_BASE_URL"),
		HTTPClient: greennessHTTP,
		Logger:     log,
	})

	// Core services
	feedService := transitfeed.NewService(transitfeed.ServiceConfig{
		Provider:    feedClient,
		Logger:      log,
		PacingDelay: engine.APIDelay,
	})
	log.Info().Msg("transit feed service initialized")

	solver := pathfinder.NewSolver(pathfinder.SolverConfig{
		Store:  spatialRepo,
		Logger: log,
	})

	evaluator := dgvi.NewEvaluator(dgvi.EvaluatorConfig{
		Edges:   spatialRepo,
		Samples: gviRepo,
		Logger:  log,
	})

	rebuilder := dgvi.NewRebuilder(dgvi.RebuildConfig{
		Evaluator: evaluator,
		Roads:     spatialRepo,
		Writer:    gviRepo,
		Logger:    log,
	})

	gviService := gvi.NewService(gvi.ServiceConfig{
		Repository: gviRepo,
		Provider:   greennessClient,
		Logger:     log,
	})
	log.Info().Msg("gvi service initialized")

	plannerService := planner.NewService(planner.ServiceConfig{
		Solver:    solver,
		Feed:      feedService,
		Store:     spatialRepo,
		Greenness: evaluator,
		Logger:    log,
		Engine:    engine,
	})
	log.Info().Msg("planner service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Planner:     plannerService,
		GVI:         gviService,
		Months:      gviService,
		Sites:       spatialRepo,
		Rebuilder:   rebuilder,
		DB:          pool,
		Registry:    resilience.GlobalRegistry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: engine.PlanDeadline + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
