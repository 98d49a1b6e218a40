package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/usecase"
)

const taskTimeout = time.Minute

// Options configures the periodic tasks. An empty schedule disables its task.
type Options struct {
	PendingSchedule string
	PendingBatch    int
	ReaperSchedule  string
	StaleAfter      time.Duration
}

// Scheduler triggers batch enqueue and the stale-run reaper on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	manager usecase.JobManager
	opts    Options
	logger  *zap.Logger
}

func New(manager usecase.JobManager, opts Options, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		manager: manager,
		opts:    opts,
		logger:  logger,
	}
}

// Register adds the configured tasks. Tasks run with contexts derived from ctx.
func (s *Scheduler) Register(ctx context.Context) error {
	if s.opts.PendingSchedule != "" {
		if _, err := s.cron.AddFunc(s.opts.PendingSchedule, func() { s.EnqueuePending(ctx) }); err != nil {
			return fmt.Errorf("invalid pending schedule %q: %w", s.opts.PendingSchedule, err)
		}
		s.logger.Info("Scheduled pending job enqueue", zap.String("schedule", s.opts.PendingSchedule))
	}
	if s.opts.ReaperSchedule != "" {
		if _, err := s.cron.AddFunc(s.opts.ReaperSchedule, func() { s.ReapStale(ctx) }); err != nil {
			return fmt.Errorf("invalid reaper schedule %q: %w", s.opts.ReaperSchedule, err)
		}
		s.logger.Info("Scheduled stale run reaper", zap.String("schedule", s.opts.ReaperSchedule), zap.Duration("stale_after", s.opts.StaleAfter))
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// EnqueuePending pushes never-run jobs onto the queue.
func (s *Scheduler) EnqueuePending(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	n, err := s.manager.EnqueuePending(ctx, s.opts.PendingBatch)
	if err != nil {
		s.logger.Error("Scheduled enqueue failed", zap.Error(err))
		return
	}
	s.logger.Debug("Scheduled enqueue finished", zap.Int("enqueued", n))
}

// ReapStale fails runs that never completed.
func (s *Scheduler) ReapStale(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	if _, err := s.manager.ReapStale(ctx, s.opts.StaleAfter); err != nil {
		s.logger.Error("Stale run reaper failed", zap.Error(err))
	}
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
