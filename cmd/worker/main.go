// Package main provides the entrypoint for the GreenRoute rebuild worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/config"
	"github.com/greenroute/greenroute/internal/database"
	"github.com/greenroute/greenroute/internal/dgvi"
	"github.com/greenroute/greenroute/internal/gvi"
	"github.com/greenroute/greenroute/internal/spatial"
	"github.com/greenroute/greenroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "greenroute-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting GreenRoute worker")

	// Worker also exposes a health endpoint for the orchestrator
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	engine := config.FromEnv()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConfig := database.ConfigFromEnv()
	dbConfig.MaxOpenConns = engine.DBPoolSize
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	spatialRepo := spatial.NewPostgresRepository(pool)
	gviRepo := gvi.NewPostgresRepository(pool)

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

	// Monthly rebuild schedule
	scheduler := worker.NewScheduler(worker.SchedulerConfig{
		Rebuilder: rebuilder,
		Logger:    log,
		Schedule:  os.Getenv("REBUILD_SCHEDULE"),
	})
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start rebuild scheduler")
	}
	defer scheduler.Stop()

	// On-demand rebuilds via Pub/Sub, when configured
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Rebuilder:        rebuilder,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("pubsub not configured - rebuilds run on schedule only")
	}

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
