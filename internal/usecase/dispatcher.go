package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/repository"
	"github.com/user/content-crawler/pkg/metrics"
)

const popErrorBackoff = time.Second

// Dispatcher drains the job queue with a fixed pool of workers.
type Dispatcher struct {
	queue      repository.QueueRepository
	runner     JobRunner
	workers    int
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher; runTimeout bounds each job run.
func NewDispatcher(queue repository.QueueRepository, runner JobRunner, workers int, runTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:      queue,
		runner:     runner,
		workers:    workers,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled and every in-flight run has finished.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		worker := i
		g.Go(func() error {
			d.worker(ctx, worker)
			return nil
		})
	}
	d.logger.Info("Dispatcher started", zap.Int("workers", d.workers))
	return g.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, worker int) {
	log := d.logger.With(zap.Int("worker", worker))
	for ctx.Err() == nil {
		jobID, err := d.queue.Pop(ctx)
		switch {
		case err == nil:
			d.process(ctx, jobID, log)
		case errors.Is(err, repository.ErrQueueEmpty), ctx.Err() != nil:
			// Queue is empty or shutting down, which is a normal state.
		default:
			log.Error("Failed to pop job from queue", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(popErrorBackoff):
			}
		}
	}
}

// process runs one job. The run is detached from shutdown so it can finish
// and persist its outcome.
func (d *Dispatcher) process(ctx context.Context, jobID string, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.runTimeout)
	defer cancel()

	if size, err := d.queue.Size(runCtx); err == nil {
		metrics.JobsInQueue.Set(float64(size))
	}

	result, err := d.runner.RunJob(runCtx, jobID)
	var conflict *entity.ConflictError
	switch {
	case errors.As(err, &conflict):
		log.Info("Skipping queued job", zap.String("job_id", jobID), zap.String("reason", conflict.Reason))
	case err != nil:
		log.Error("Queued job run failed", zap.String("job_id", jobID), zap.Error(err))
	default:
		log.Debug("Queued job processed", zap.String("job_id", jobID), zap.String("status", string(result.Status)))
	}
}
