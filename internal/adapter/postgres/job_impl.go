package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/repository"
)

const jobColumns = `id::text, url, COALESCE(normalized_url, ''), type, source_id::text, status, retry_count,
	COALESCE(error_message, ''), extracted_data, processed_at, created_at, updated_at`

// JobRepoImpl provides a concrete implementation for the JobRepository interface using PostgreSQL.
type JobRepoImpl struct {
	db DBTX
}

// NewJobRepo creates a new instance of JobRepoImpl.
func NewJobRepo(db DBTX) *JobRepoImpl {
	return &JobRepoImpl{db: db}
}

// Get retrieves a crawl job by id.
func (r *JobRepoImpl) Get(ctx context.Context, id string) (*entity.CrawlJob, error) {
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs WHERE id = $1;`
	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ClaimForRun moves the job to processing with a conditional update, so two
// concurrent claims for the same job cannot both succeed.
func (r *JobRepoImpl) ClaimForRun(ctx context.Context, id string) (*entity.CrawlJob, error) {
	query := `
		UPDATE crawl_jobs
		SET status = 'processing', retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'failed')
		RETURNING ` + jobColumns + `;`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}

	// Lost the race or the job is not runnable; report what it is now.
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conflict := entity.ConflictFor(id, current.Status); conflict != nil {
		return nil, conflict
	}
	return nil, &entity.ConflictError{JobID: id, Status: current.Status, Reason: entity.ConflictInvalidTransition}
}

// SaveOutcome writes the terminal state of a run in a single update.
func (r *JobRepoImpl) SaveOutcome(ctx context.Context, id string, outcome entity.JobOutcome) error {
	if err := entity.ValidateTransition(entity.StatusProcessing, outcome.Status); err != nil {
		return err
	}

	var data any
	if len(outcome.ExtractedData) > 0 {
		data = []byte(outcome.ExtractedData)
	}

	query := `
		UPDATE crawl_jobs
		SET status = $2,
			normalized_url = NULLIF($3, ''),
			error_message = NULLIF($4, ''),
			extracted_data = $5,
			processed_at = $6,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing';
	`
	tag, err := r.db.Exec(ctx, query,
		id,
		string(outcome.Status),
		outcome.NormalizedURL,
		outcome.ErrorMessage,
		data,
		outcome.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("save outcome for job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save outcome for job %s: %w", id, repository.ErrStaleOutcome)
	}
	return nil
}

// ResetForRecrawl returns a finished job to pending.
func (r *JobRepoImpl) ResetForRecrawl(ctx context.Context, id string) (*entity.CrawlJob, error) {
	query := `
		UPDATE crawl_jobs
		SET status = 'pending', error_message = NULL, extracted_data = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('failed', 'duplicate', 'pending_review')
		RETURNING ` + jobColumns + `;`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reset job %s: %w", id, err)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reason := entity.ConflictInvalidTransition
	if current.Status == entity.StatusProcessing {
		reason = entity.ConflictInFlight
	}
	return nil, &entity.ConflictError{JobID: id, Status: current.Status, Reason: reason}
}

// ListIDsByStatus returns job ids in a status, oldest first.
func (r *JobRepoImpl) ListIDsByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]string, error) {
	query := `
		SELECT id::text
		FROM crawl_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FailStale fails processing jobs that have not been touched since olderThan.
func (r *JobRepoImpl) FailStale(ctx context.Context, olderThan time.Time, message string) ([]string, error) {
	query := `
		UPDATE crawl_jobs
		SET status = 'failed', error_message = $2, processed_at = NOW(), updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
		RETURNING id::text;
	`
	rows, err := r.db.Query(ctx, query, olderThan, message)
	if err != nil {
		return nil, fmt.Errorf("fail stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanJob(row pgx.Row) (*entity.CrawlJob, error) {
	var (
		job    entity.CrawlJob
		kind   string
		status string
		data   []byte
	)
	err := row.Scan(
		&job.ID,
		&job.URL,
		&job.NormalizedURL,
		&kind,
		&job.SourceID,
		&status,
		&job.RetryCount,
		&job.ErrorMessage,
		&data,
		&job.ProcessedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if job.Type, err = entity.ParseContentKind(kind); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.Status, err = entity.ParseJobStatus(status); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if len(data) > 0 {
		job.ExtractedData = data
	}
	return &job, nil
}
