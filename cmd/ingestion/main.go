package main

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Hojaeaga/replyguy-monorepo/internal/ai"
	"github.com/Hojaeaga/replyguy-monorepo/internal/config"
	"github.com/Hojaeaga/replyguy-monorepo/internal/handler"
	"github.com/Hojaeaga/replyguy-monorepo/internal/producer"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
	"github.com/Hojaeaga/replyguy-monorepo/internal/social"
	"github.com/Hojaeaga/replyguy-monorepo/internal/store"
	"github.com/Hojaeaga/replyguy-monorepo/internal/user"
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
		ServiceName: "ingestion",
	})
	logger := pkglog.L()

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

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create queue")
	}
	defer q.Close()
	logger.Info().Str("driver", cfg.Queue.Driver).Msg("queue connected")

	// Initialize services
	aiClient := ai.NewHTTPClient(cfg.AI)
	socialClient := social.NewHTTPClient(cfg.Social)
	userService := user.NewService(st, aiClient, socialClient)
	castProducer := producer.New(q)

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(castProducer, userService)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	httpHandler.RegisterRoutes(r)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("ingestion service starting")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
