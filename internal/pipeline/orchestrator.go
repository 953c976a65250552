package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/classlens/classlens/internal/analysis"
	"github.com/classlens/classlens/internal/config"
	"github.com/classlens/classlens/internal/domain"
	"github.com/classlens/classlens/internal/frames"
	"github.com/classlens/classlens/internal/logger"
	"github.com/classlens/classlens/internal/prompts"
	"github.com/classlens/classlens/internal/repository"
	"github.com/classlens/classlens/internal/storage"
	"github.com/classlens/classlens/internal/vision"
)

// FrameSampler extracts still frames from a local video file. Satisfied
// by frames.Sampler.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string) ([]frames.Frame, float64, error)
}

// Orchestrator polls for pending videos and drives each one through the
// full analysis run: fetch, sample, analyze in batches, synthesize, and
// persist. Jobs run concurrently up to the configured cap; claims are
// atomic so multiple workers can share a queue.
type Orchestrator struct {
	cfg           config.PipelineConfig
	elementsBatch int

	videos       *repository.VideoRepository
	rubrics      *repository.RubricRepository
	observations *repository.ObservationRepository
	assessments  *repository.AssessmentRepository
	audits       *repository.AuditRepository

	store   storage.ObjectStorage
	sampler FrameSampler
	client  *vision.Client

	wg     sync.WaitGroup
	active int32
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Videos       *repository.VideoRepository
	Rubrics      *repository.RubricRepository
	Observations *repository.ObservationRepository
	Assessments  *repository.AssessmentRepository
	Audits       *repository.AuditRepository
	Store        storage.ObjectStorage
	Sampler      FrameSampler
	Client       *vision.Client
}

// NewOrchestrator creates a pipeline orchestrator.
// Parameters:
//   - cfg: polling, concurrency, and shutdown settings.
//   - elementsBatch: rubric elements per vision request.
//   - deps: repositories, storage, sampler, and vision client.
func NewOrchestrator(cfg config.PipelineConfig, elementsBatch int, deps Deps) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	return &Orchestrator{
		cfg:           cfg,
		elementsBatch: elementsBatch,
		videos:        deps.Videos,
		rubrics:       deps.Rubrics,
		observations:  deps.Observations,
		assessments:   deps.Assessments,
		audits:        deps.Audits,
		store:         deps.Store,
		sampler:       deps.Sampler,
		client:        deps.Client,
	}
}

// Run polls until ctx is canceled, then waits for in-flight jobs up to the
// shutdown grace before forcing them to stop. Interrupted jobs leave their
// videos in processing; the stale requeue on next startup recovers them.
func (o *Orchestrator) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	cutoff := time.Now().Add(-o.cfg.StaleAfter)
	if n, err := o.videos.RequeueStale(ctx, cutoff); err != nil {
		log.WithError(err).Warn("Failed to requeue stale videos")
	} else if n > 0 {
		log.WithField(logger.FieldCount, n).Info("Requeued stale videos from previous run")
	}

	// Jobs keep running through poller shutdown until the grace expires.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	o.dispatch(jobCtx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Pipeline shutting down, draining jobs")
			done := make(chan struct{})
			go func() {
				o.wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(o.cfg.ShutdownGrace):
				log.Warn("Shutdown grace expired, canceling in-flight jobs")
				cancelJobs()
				o.wg.Wait()
			}
			return nil
		case <-ticker.C:
			o.dispatch(jobCtx)
		}
	}
}

// dispatch claims up to the free concurrency slots worth of pending videos
// and starts a job for each. The budget is checked first so a blown cap
// stops claims instead of burning through the queue.
func (o *Orchestrator) dispatch(ctx context.Context) {
	slots := o.cfg.MaxConcurrent - int(atomic.LoadInt32(&o.active))
	if slots <= 0 {
		return
	}

	if err := o.client.Ledger().Check(ctx); err != nil {
		if errors.Is(err, vision.ErrBudgetExceeded) {
			logger.FromContext(ctx).Debug("Daily budget exhausted, skipping dispatch")
			return
		}
		logger.FromContext(ctx).WithError(err).Warn("Budget check failed, skipping dispatch")
		return
	}

	pending, err := o.videos.ListPending(ctx, slots)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to list pending videos")
		return
	}

	for _, video := range pending {
		claimed, err := o.videos.Claim(ctx, video.ID)
		if err != nil {
			logger.FromContext(ctx).WithError(err).
				WithField(logger.FieldVideoID, video.ID).Error("Failed to claim video")
			continue
		}
		if !claimed {
			continue
		}

		v := video
		atomic.AddInt32(&o.active, 1)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer atomic.AddInt32(&o.active, -1)
			o.process(ctx, &v)
		}()
	}
}

// process runs one claimed video end to end.
func (o *Orchestrator) process(ctx context.Context, video *domain.Video) {
	ctx = logger.SetVideoID(ctx, video.ID)
	ctx = logger.SetTeacherID(ctx, video.TeacherID)
	ctx = logger.SetComponent(ctx, "pipeline")
	log := logger.FromContext(ctx)

	start := time.Now()
	log.Info("Starting video analysis")

	result, err := o.analyze(ctx, video)
	elapsed := time.Since(start)

	if err != nil {
		// Resource-gate refusals are not failures of this video; put it
		// back for a later tick.
		if errors.Is(err, vision.ErrCircuitOpen) || errors.Is(err, vision.ErrBudgetExceeded) {
			log.WithError(err).Warn("Run refused by resource gate, requeuing video")
			if rqErr := o.videos.Requeue(ctx, video.ID); rqErr != nil {
				log.WithError(rqErr).Error("Failed to requeue video")
			}
			return
		}

		log.WithError(err).Error("Video analysis failed")
		if mfErr := o.videos.MarkFailed(ctx, video.ID, err.Error()); mfErr != nil {
			log.WithError(mfErr).Error("Failed to mark video failed")
		}
		o.writeAudit(ctx, video, domain.AuditOutcomeFailed, err.Error(), nil, elapsed)
		return
	}

	if err := o.persist(ctx, video, result, elapsed); err != nil {
		log.WithError(err).Error("Failed to persist analysis result")
		if mfErr := o.videos.MarkFailed(ctx, video.ID, err.Error()); mfErr != nil {
			log.WithError(mfErr).Error("Failed to mark video failed")
		}
		o.writeAudit(ctx, video, domain.AuditOutcomeFailed, err.Error(), result, elapsed)
		return
	}

	o.writeAudit(ctx, video, domain.AuditOutcomeCompleted, "", result, elapsed)
	logger.With(logger.Fields{}).
		WithDuration(elapsed.Milliseconds()).
		WithTokens(result.Usage.Total()).
		WithCost(result.Usage.CostUSD).
		WithCount(result.FrameCount).
		Info(ctx, "Video analysis completed")
}

// analyze runs the model-facing part of the pipeline: fetch, sample,
// batch analysis, synthesis, assembly.
func (o *Orchestrator) analyze(ctx context.Context, video *domain.Video) (*analysis.Result, error) {
	tpl, err := o.rubrics.GetTemplate(ctx, video.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rubric template %s: %w", video.TemplateID, err)
	}
	elements, err := o.rubrics.ListElements(ctx, video.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rubric elements: %w", err)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("rubric template %s has no elements", video.TemplateID)
	}

	// Refuse before downloading or sampling anything. This reads the
	// breaker without claiming the half-open probe; the probe is admitted
	// by the client when the first model call is actually made.
	if !o.client.Breaker().Ready() {
		return nil, vision.ErrCircuitOpen
	}
	if err := o.client.Ledger().Check(ctx); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "classlens-video-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := storage.FetchToFile(ctx, o.store, video.StorageKey, tmpPath); err != nil {
		return nil, err
	}

	sampled, duration, err := o.sampler.Sample(ctx, tmpPath)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).
		WithField(logger.FieldCount, len(sampled)).
		WithField("duration_seconds", duration).
		Info("Frames sampled")

	tc := prompts.TeacherContext{
		TeacherName: video.TeacherName,
		GradeLevel:  video.GradeLevel,
		Subject:     video.Subject,
	}

	batches := prompts.BatchElements(elements, o.elementsBatch)
	responses := make([]*prompts.AnalysisResponse, 0, len(batches))
	var usage vision.TokenUsage
	var allAnalyses []prompts.ElementAnalysis

	for i, batch := range batches {
		resp, batchUsage, err := o.client.AnalyzeBatch(ctx, tc, tpl.Name, batch, sampled)
		usage = usage.Add(batchUsage)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d failed: %w", i+1, len(batches), err)
		}
		responses = append(responses, resp)
		allAnalyses = append(allAnalyses, resp.ElementAnalyses...)
	}

	synthesis, synthUsage, err := o.client.Synthesize(ctx, tc, tpl.Name, elements, allAnalyses)
	usage = usage.Add(synthUsage)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	return analysis.Assemble(elements, responses, synthesis, usage, len(sampled), duration)
}

// persist writes the run's observations, assessment, and completion state.
// All writes are upserts keyed by video so a rerun replaces, never
// duplicates.
func (o *Orchestrator) persist(ctx context.Context, video *domain.Video, result *analysis.Result, elapsed time.Duration) error {
	now := time.Now()
	observedAt := video.UploadedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	obs := make([]domain.Observation, 0, len(result.ElementAnalyses))
	for _, a := range result.ElementAnalyses {
		obs = append(obs, domain.Observation{
			ID:                uuid.New().String(),
			VideoID:           video.ID,
			ElementID:         a.ElementID,
			TeacherID:         video.TeacherID,
			TemplateID:        video.TemplateID,
			Source:            domain.ObservationSourceAI,
			RawScore:          a.Score,
			NormalizedScore:   domain.NormalizeScore(a.Score),
			Confidence:        a.Confidence,
			Summary:           a.Summary,
			Behaviors:         a.Behaviors,
			FrameRefs:         a.FrameRefs,
			StudentIndicators: a.StudentIndicators,
			EnvironmentNotes:  a.EnvironmentNotes,
			KeyMoments:        a.KeyMoments,
			Recommendations:   a.Recommendations,
			ReviewStatus:      domain.ReviewStatusPending,
			ModelVersion:      o.client.Model(),
			ObservedAt:        observedAt,
		})
	}
	if err := o.observations.UpsertBatch(ctx, obs); err != nil {
		return fmt.Errorf("failed to write observations: %w", err)
	}

	s := result.Synthesis
	assessment := &domain.Assessment{
		ID:               uuid.New().String(),
		VideoID:          video.ID,
		TeacherID:        video.TeacherID,
		TemplateID:       video.TemplateID,
		ExecutiveSummary: s.ExecutiveSummary,
		DomainSummaries:  s.DomainSummaries,
		OverallScore:     s.OverallScore,
		PerformanceLevel: domain.PerformanceLevelFor(s.OverallScore),
		Justification:    s.Justification,
		Recommendations:  s.Recommendations,
		Strengths:        s.Strengths,
		GrowthAreas:      s.GrowthAreas,
		BatchCount:       result.BatchCount,
		FrameCount:       result.FrameCount,
		InputTokens:      result.Usage.InputTokens,
		OutputTokens:     result.Usage.OutputTokens,
		TotalTokens:      result.Usage.Total(),
		CostEstimate:     result.Usage.CostUSD,
		ProcessingMs:     elapsed.Milliseconds(),
		ModelVersion:     o.client.Model(),
		AnalyzedAt:       now,
	}
	if err := o.assessments.Upsert(ctx, assessment); err != nil {
		return fmt.Errorf("failed to write assessment: %w", err)
	}

	if err := o.videos.MarkCompleted(ctx, video.ID); err != nil {
		return fmt.Errorf("failed to mark video completed: %w", err)
	}
	return nil
}

func (o *Orchestrator) writeAudit(ctx context.Context, video *domain.Video, outcome domain.AuditOutcome, errMsg string, result *analysis.Result, elapsed time.Duration) {
	entry := &domain.AuditEntry{
		ID:           uuid.New().String(),
		VideoID:      video.ID,
		TeacherID:    video.TeacherID,
		Outcome:      outcome,
		ErrorMessage: errMsg,
		ProcessingMs: elapsed.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if result != nil {
		entry.TotalTokens = result.Usage.Total()
		entry.CostEstimate = result.Usage.CostUSD
		entry.FrameCount = result.FrameCount
		entry.BatchCount = result.BatchCount
		if outcome == domain.AuditOutcomeCompleted && result.Synthesis != nil {
			entry.PerformanceLevel = domain.PerformanceLevelFor(result.Synthesis.OverallScore)
		}
	}
	if err := o.audits.Create(ctx, entry); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to write audit entry")
	}
}
