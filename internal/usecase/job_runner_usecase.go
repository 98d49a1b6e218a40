package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/extractor"
	"github.com/user/content-crawler/internal/repository"
	"github.com/user/content-crawler/pkg/metrics"
	"github.com/user/content-crawler/pkg/utils"
)

const defaultSaveTimeout = 10 * time.Second

// RunResult is what a caller learns from one run. Data is set for
// pending_review, Error for failed, DuplicateOf for duplicate.
type RunResult struct {
	JobID       string           `json:"jobId"`
	Status      entity.JobStatus `json:"status"`
	RetryCount  int              `json:"retryCount"`
	Data        json.RawMessage  `json:"data,omitempty"`
	Error       string           `json:"error,omitempty"`
	DuplicateOf string           `json:"duplicateOf,omitempty"`
}

// JobRunner defines the interface for executing a single crawl attempt.
type JobRunner interface {
	RunJob(ctx context.Context, jobID string) (*RunResult, error)
}

// RecordExtractor turns a fetched page into a record.
type RecordExtractor interface {
	Extract(req extractor.Request) (entity.ExtractedRecord, error)
}

type jobRunnerUseCase struct {
	jobRepo     repository.JobRepository
	sourceRepo  repository.SourceRepository
	duplicates  repository.DuplicateChecker
	fetcher     repository.PageFetcher
	browser     repository.PageFetcher
	extractor   RecordExtractor
	logger      *zap.Logger
	saveTimeout time.Duration
	now         func() time.Time
}

// JobRunnerOption customizes a job runner.
type JobRunnerOption func(*jobRunnerUseCase)

// WithBrowserFetcher sets the fetcher used for sources that need JavaScript rendering.
func WithBrowserFetcher(f repository.PageFetcher) JobRunnerOption {
	return func(uc *jobRunnerUseCase) { uc.browser = f }
}

// WithSaveTimeout bounds the final outcome write.
func WithSaveTimeout(d time.Duration) JobRunnerOption {
	return func(uc *jobRunnerUseCase) { uc.saveTimeout = d }
}

// NewJobRunner creates a new instance of the job runner use case.
func NewJobRunner(
	jobRepo repository.JobRepository,
	sourceRepo repository.SourceRepository,
	duplicates repository.DuplicateChecker,
	fetcher repository.PageFetcher,
	ext RecordExtractor,
	logger *zap.Logger,
	opts ...JobRunnerOption,
) JobRunner {
	uc := &jobRunnerUseCase{
		jobRepo:     jobRepo,
		sourceRepo:  sourceRepo,
		duplicates:  duplicates,
		fetcher:     fetcher,
		extractor:   ext,
		logger:      logger,
		saveTimeout: defaultSaveTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// RunJob claims the job, runs duplicate check, fetch and extraction, and
// persists exactly one terminal outcome. Conflicts, unknown jobs and invalid
// URLs are returned as errors without touching the job.
func (uc *jobRunnerUseCase) RunJob(ctx context.Context, jobID string) (*RunResult, error) {
	log := uc.logger.With(zap.String("job_id", jobID), zap.String("run_id", uuid.NewString()))

	job, err := uc.jobRepo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if conflict := entity.ConflictFor(jobID, job.Status); conflict != nil {
		metrics.JobRunsTotal.WithLabelValues(string(job.Type), "conflict").Inc()
		return nil, conflict
	}

	normalized, err := utils.Normalize(job.URL)
	if err != nil {
		log.Warn("Job has an invalid URL", zap.String("url", job.URL), zap.Error(err))
		return nil, err
	}

	claimed, err := uc.jobRepo.ClaimForRun(ctx, jobID)
	if err != nil {
		var conflict *entity.ConflictError
		if errors.As(err, &conflict) {
			metrics.JobRunsTotal.WithLabelValues(string(job.Type), "conflict").Inc()
		}
		return nil, err
	}

	log.Info("Running crawl job", zap.String("url", normalized), zap.String("type", string(claimed.Type)), zap.Int("attempt", claimed.RetryCount))
	startTime := time.Now()

	outcome, duplicateOf := uc.execute(ctx, claimed, normalized, log)

	// The run must end in a terminal state even if the caller gave up.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.saveTimeout)
	defer cancel()
	if err := uc.jobRepo.SaveOutcome(saveCtx, jobID, outcome); err != nil {
		log.Error("Failed to persist run outcome", zap.String("status", string(outcome.Status)), zap.Error(err))
		return nil, fmt.Errorf("failed to persist outcome for job %s: %w", jobID, err)
	}

	duration := time.Since(startTime)
	metrics.JobRunsTotal.WithLabelValues(string(claimed.Type), string(outcome.Status)).Inc()
	metrics.JobRunDuration.WithLabelValues(string(claimed.Type)).Observe(duration.Seconds())
	log.Info("Crawl job finished",
		zap.String("status", string(outcome.Status)),
		zap.String("error", outcome.ErrorMessage),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)

	result := &RunResult{
		JobID:       jobID,
		Status:      outcome.Status,
		RetryCount:  claimed.RetryCount,
		DuplicateOf: duplicateOf,
	}
	switch outcome.Status {
	case entity.StatusPendingReview:
		result.Data = outcome.ExtractedData
	case entity.StatusFailed:
		result.Error = outcome.ErrorMessage
	}
	return result, nil
}

// execute performs the steps after the claim. It never returns an error: every
// failure becomes a failed outcome.
func (uc *jobRunnerUseCase) execute(ctx context.Context, job *entity.CrawlJob, normalized string, log *zap.Logger) (entity.JobOutcome, string) {
	failed := func(err error) (entity.JobOutcome, string) {
		return entity.JobOutcome{
			Status:        entity.StatusFailed,
			NormalizedURL: normalized,
			ErrorMessage:  err.Error(),
			ProcessedAt:   uc.now(),
		}, ""
	}

	ref, found, err := uc.duplicates.FindDuplicate(ctx, normalized, job.Type, job.ID)
	if err != nil {
		return failed(fmt.Errorf("duplicate check failed: %w", err))
	}
	if found {
		return entity.JobOutcome{
			Status:        entity.StatusDuplicate,
			NormalizedURL: normalized,
			ErrorMessage:  "duplicate of " + ref,
			ProcessedAt:   uc.now(),
		}, ref
	}

	cfg, err := uc.resolveConfig(ctx, job, log)
	if err != nil {
		return failed(err)
	}

	// The normalized form is only a dedup key; servers get the URL as entered.
	target, err := utils.StripFragment(job.URL)
	if err != nil {
		target = normalized
	}
	fetcher := uc.fetcher
	if cfg.RenderJS && uc.browser != nil {
		fetcher = uc.browser
	}
	page, err := fetcher.Fetch(ctx, target, cfg.RequestHeaders)
	if err != nil {
		return failed(err)
	}

	baseURL := page.FinalURL
	if baseURL == "" {
		baseURL = target
	}
	record, err := uc.extractor.Extract(extractor.Request{
		Kind:      job.Type,
		HTML:      page.Body,
		BaseURL:   baseURL,
		SourceURL: normalized,
		Config:    cfg,
	})
	if err != nil {
		return failed(err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return failed(fmt.Errorf("failed to encode extracted record: %w", err))
	}

	return entity.JobOutcome{
		Status:        entity.StatusPendingReview,
		NormalizedURL: normalized,
		ExtractedData: data,
		ProcessedAt:   uc.now(),
	}, ""
}

// resolveConfig returns the linked source's config or the built-in default.
func (uc *jobRunnerUseCase) resolveConfig(ctx context.Context, job *entity.CrawlJob, log *zap.Logger) (*entity.SelectorConfig, error) {
	if job.SourceID == nil || *job.SourceID == "" {
		return entity.DefaultSelectorConfig(), nil
	}

	cfg, err := uc.sourceRepo.GetConfig(ctx, *job.SourceID)
	var cfgErr *entity.SelectorConfigError
	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, entity.ErrSourceNotFound):
		log.Warn("Linked source not found, using default selectors", zap.String("source_id", *job.SourceID))
		return entity.DefaultSelectorConfig(), nil
	case errors.As(err, &cfgErr):
		return nil, &entity.ExtractionError{Reason: entity.ReasonInvalidSelectorConfig, Detail: cfgErr.Error()}
	default:
		return nil, fmt.Errorf("failed to load source config: %w", err)
	}
}
