package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/classlens/classlens/internal/config"
	"github.com/classlens/classlens/internal/frames"
	"github.com/classlens/classlens/internal/logger"
	"github.com/classlens/classlens/internal/pipeline"
	"github.com/classlens/classlens/internal/repository"
	"github.com/classlens/classlens/internal/storage"
	"github.com/classlens/classlens/internal/vision"
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

	if cfg.Vision.APIKey == "" {
		appLogger.Fatal("OPENAI_API_KEY is required")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	videoRepo := repository.NewVideoRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	observationRepo := repository.NewObservationRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	sampler, err := frames.NewSampler(frames.Config{
		FFmpegPath:  cfg.Frames.FFmpegPath,
		MaxWidth:    cfg.Frames.MaxWidth,
		MaxHeight:   cfg.Frames.MaxHeight,
		JPEGQuality: cfg.Frames.JPEGQuality,
		ShortCount:  cfg.Frames.ShortCount,
		MediumCount: cfg.Frames.MediumCount,
		LongCount:   cfg.Frames.LongCount,
		MinUsable:   cfg.Frames.MinUsable,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize frame sampler")
	}

	ledger := vision.NewLedger(usageRepo, cfg.Vision.DailyBudgetUSD)
	client := vision.NewClient(&cfg.Vision, ledger)

	orchestrator := pipeline.NewOrchestrator(cfg.Pipeline, cfg.Frames.ElementsBatch, pipeline.Deps{
		Videos:       videoRepo,
		Rubrics:      rubricRepo,
		Observations: observationRepo,
		Assessments:  assessmentRepo,
		Audits:       auditRepo,
		Store:        store,
		Sampler:      sampler,
		Client:       client,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = appLogger.WithContext(ctx)

	appLogger.WithField(logger.FieldModel, cfg.Vision.Model).Info("Starting analysis worker")
	if err := orchestrator.Run(ctx); err != nil {
		appLogger.WithError(err).Fatal("Worker exited with error")
	}
	appLogger.Info("Worker exited")
}
