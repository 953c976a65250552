package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classlens/classlens/internal/api"
	"github.com/classlens/classlens/internal/config"
	"github.com/classlens/classlens/internal/logger"
	"github.com/classlens/classlens/internal/repository"
	"github.com/classlens/classlens/internal/scoring"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	videoRepo := repository.NewVideoRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	observationRepo := repository.NewObservationRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	scoreService := scoring.NewService(
		observationRepo,
		rubricRepo,
		scoring.Thresholds{GreenMin: cfg.Scoring.GreenMin, YellowMin: cfg.Scoring.YellowMin},
		cfg.Scoring.ProblemTop,
	)

	router := api.SetupRouter(&cfg.Server, api.Deps{
		Videos:      videoRepo,
		Assessments: assessmentRepo,
		Audits:      auditRepo,
		Scores:      scoreService,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithField("port", cfg.Server.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
