package repository

import (
	"context"
	"time"

	"github.com/user/content-crawler/internal/entity"
)

// JobRepository defines the persistence contract for crawl jobs.
type JobRepository interface {
	// Get returns the job or entity.ErrJobNotFound.
	Get(ctx context.Context, id string) (*entity.CrawlJob, error)
	// ClaimForRun atomically moves a pending or failed job to processing and
	// increments its retry count. It returns a *entity.ConflictError when the
	// job is in any other state, or entity.ErrJobNotFound.
	ClaimForRun(ctx context.Context, id string) (*entity.CrawlJob, error)
	// SaveOutcome writes the terminal result of a run. Only a job still in
	// processing is updated.
	SaveOutcome(ctx context.Context, id string, outcome entity.JobOutcome) error
	// ResetForRecrawl moves a failed, duplicate or pending_review job back to
	// pending and clears its payload and error.
	ResetForRecrawl(ctx context.Context, id string) (*entity.CrawlJob, error)
	// ListIDsByStatus returns up to limit job ids in the given status, oldest first.
	ListIDsByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]string, error)
	// FailStale marks processing jobs not updated since olderThan as failed.
	FailStale(ctx context.Context, olderThan time.Time, message string) ([]string, error)
}
