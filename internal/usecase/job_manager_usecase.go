package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/repository"
	"github.com/user/content-crawler/pkg/metrics"
)

// StaleRunMessage is recorded on jobs failed by the reaper.
const StaleRunMessage = "run did not complete"

// JobManager defines the operator-facing job operations around RunJob.
type JobManager interface {
	Get(ctx context.Context, jobID string) (*entity.CrawlJob, error)
	Enqueue(ctx context.Context, jobID string) error
	EnqueuePending(ctx context.Context, limit int) (int, error)
	Recrawl(ctx context.Context, jobID string) (*entity.CrawlJob, error)
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type jobManagerUseCase struct {
	jobRepo   repository.JobRepository
	queueRepo repository.QueueRepository
	dedup     repository.DuplicateCache
	logger    *zap.Logger
	now       func() time.Time
}

// NewJobManager creates a new JobManager use case. dedup may be nil.
func NewJobManager(
	jobRepo repository.JobRepository,
	queueRepo repository.QueueRepository,
	dedup repository.DuplicateCache,
	logger *zap.Logger,
) JobManager {
	return &jobManagerUseCase{
		jobRepo:   jobRepo,
		queueRepo: queueRepo,
		dedup:     dedup,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *jobManagerUseCase) Get(ctx context.Context, jobID string) (*entity.CrawlJob, error) {
	return uc.jobRepo.Get(ctx, jobID)
}

// Enqueue queues a runnable job for the dispatcher.
func (uc *jobManagerUseCase) Enqueue(ctx context.Context, jobID string) error {
	job, err := uc.jobRepo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if conflict := entity.ConflictFor(jobID, job.Status); conflict != nil {
		return conflict
	}

	if err := uc.queueRepo.Push(ctx, jobID); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	uc.refreshQueueGauge(ctx)
	return nil
}

// EnqueuePending queues up to limit jobs that have never run.
func (uc *jobManagerUseCase) EnqueuePending(ctx context.Context, limit int) (int, error) {
	ids, err := uc.jobRepo.ListIDsByStatus(ctx, entity.StatusPending, limit)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := uc.queueRepo.Push(ctx, ids...); err != nil {
		return 0, fmt.Errorf("failed to enqueue pending jobs: %w", err)
	}
	uc.refreshQueueGauge(ctx)
	uc.logger.Info("Enqueued pending jobs", zap.Int("count", len(ids)))
	return len(ids), nil
}

// Recrawl records the operator's intent to run a finished job again.
func (uc *jobManagerUseCase) Recrawl(ctx context.Context, jobID string) (*entity.CrawlJob, error) {
	job, err := uc.jobRepo.ResetForRecrawl(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if uc.dedup != nil && job.NormalizedURL != "" {
		if err := uc.dedup.Forget(ctx, job.NormalizedURL, job.Type); err != nil {
			// This is not a critical error, just log it.
			uc.logger.Warn("Failed to drop cached duplicate for re-crawl", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	uc.logger.Info("Job reset for re-crawl", zap.String("job_id", jobID))
	return job, nil
}

// ReapStale fails jobs stuck in processing longer than olderThan.
func (uc *jobManagerUseCase) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := uc.jobRepo.FailStale(ctx, uc.now().Add(-olderThan), StaleRunMessage)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		metrics.StaleJobsReaped.Add(float64(len(ids)))
		uc.logger.Warn("Failed stale processing jobs", zap.Int("count", len(ids)), zap.Strings("job_ids", ids))
	}
	return len(ids), nil
}

func (uc *jobManagerUseCase) refreshQueueGauge(ctx context.Context) {
	size, err := uc.queueRepo.Size(ctx)
	if err != nil {
		uc.logger.Warn("Failed to read queue size", zap.Error(err))
		return
	}
	metrics.JobsInQueue.Set(float64(size))
}
