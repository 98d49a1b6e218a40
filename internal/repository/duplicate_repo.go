package repository

import (
	"context"

	"github.com/user/content-crawler/internal/entity"
)

// DuplicateChecker looks up existing records by normalized URL and kind.
type DuplicateChecker interface {
	// FindDuplicate returns a reference to an imported record or another
	// reviewed job with the same normalized URL, ignoring excludeJobID.
	FindDuplicate(ctx context.Context, normalizedURL string, kind entity.ContentKind, excludeJobID string) (ref string, found bool, err error)
}

// DuplicateCache is implemented by checkers that memoize duplicate hits.
type DuplicateCache interface {
	// Forget drops any memoized hit for the URL and kind.
	Forget(ctx context.Context, normalizedURL string, kind entity.ContentKind) error
}
