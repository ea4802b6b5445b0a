package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hojaeaga/replyguy-monorepo/internal/ai"
	"github.com/Hojaeaga/replyguy-monorepo/internal/config"
	"github.com/Hojaeaga/replyguy-monorepo/internal/pipeline"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
	"github.com/Hojaeaga/replyguy-monorepo/internal/social"
	"github.com/Hojaeaga/replyguy-monorepo/internal/store"
	"github.com/Hojaeaga/replyguy-monorepo/internal/worker"
	"github.com/Hojaeaga/replyguy-monorepo/pkg/database"
	pkglog "github.com/Hojaeaga/replyguy-monorepo/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "worker",
	})
	logger := pkglog.L()

	logger.Info().Msg("starting replyguy worker")

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	st := store.NewGormStore(db)
	if err := st.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create queue")
	}
	logger.Info().Str("driver", cfg.Queue.Driver).Msg("queue connected")

	// Initialize collaborator clients and the pipeline
	aiClient := ai.NewHTTPClient(cfg.AI)
	socialClient := social.NewHTTPClient(cfg.Social)
	processor := pipeline.NewProcessor(st, aiClient, socialClient, cfg.Pipeline)
	runner := worker.NewRunner(q, processor.Handle)

	// Start health HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      pkglog.HTTPMiddleware(logger)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Start consumer in background
	ctx, cancel := context.WithCancel(context.Background())

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(ctx)
	}()

	// Wait for interrupt signal or fatal consumer error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("received shutdown signal")
	case err := <-runnerDone:
		if err != nil {
			logger.Error().Err(err).Msg("worker exited with error")
		}
	}

	// Graceful shutdown: stop polling, let the in-flight job finish.
	logger.Info().Msg("shutting down worker")
	cancel()

	select {
	case <-runnerDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("worker shutdown timed out")
	}

	if err := q.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close queue")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	if err := st.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close store")
	}

	logger.Info().Msg("worker stopped")
}
