package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/content-crawler/internal/entity"
)

// recordTables maps each kind to the table the approval workflow imports into.
var recordTables = map[entity.ContentKind]string{
	entity.KindArticle: "articles",
	entity.KindProduct: "products",
}

// DuplicateRepoImpl looks for existing records sharing a normalized source URL.
type DuplicateRepoImpl struct {
	db DBTX
}

// NewDuplicateRepo creates a new instance of DuplicateRepoImpl.
func NewDuplicateRepo(db DBTX) *DuplicateRepoImpl {
	return &DuplicateRepoImpl{db: db}
}

// FindDuplicate checks imported records first, then other jobs awaiting review.
func (r *DuplicateRepoImpl) FindDuplicate(ctx context.Context, normalizedURL string, kind entity.ContentKind, excludeJobID string) (string, bool, error) {
	table, ok := recordTables[kind]
	if !ok {
		return "", false, fmt.Errorf("unknown content kind %q", kind)
	}

	var id string
	query := fmt.Sprintf(`SELECT id::text FROM %s WHERE source_url = $1 LIMIT 1;`, table)
	err := r.db.QueryRow(ctx, query, normalizedURL).Scan(&id)
	switch {
	case err == nil:
		return entity.RecordRef(kind, id), true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return "", false, fmt.Errorf("lookup %s by source url: %w", table, err)
	}

	query = `
		SELECT id::text
		FROM crawl_jobs
		WHERE normalized_url = $1 AND type = $2 AND status = 'pending_review' AND id::text <> $3
		ORDER BY processed_at ASC
		LIMIT 1;
	`
	err = r.db.QueryRow(ctx, query, normalizedURL, string(kind), excludeJobID).Scan(&id)
	switch {
	case err == nil:
		return entity.JobRef(id), true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("lookup reviewed jobs by url: %w", err)
	}
}
