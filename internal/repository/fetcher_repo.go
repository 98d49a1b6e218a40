package repository

import (
	"context"

	"github.com/user/content-crawler/internal/entity"
)

// PageFetcher retrieves a single page. Implementations never retry.
type PageFetcher interface {
	// Fetch returns the decoded page or a *entity.FetchError.
	Fetch(ctx context.Context, url string, headers map[string]string) (*entity.FetchedPage, error)
}
