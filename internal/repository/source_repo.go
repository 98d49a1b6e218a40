package repository

import (
	"context"

	"github.com/user/content-crawler/internal/entity"
)

// SourceRepository loads the selector configuration owned by a crawl source.
type SourceRepository interface {
	// GetConfig returns the validated config, entity.ErrSourceNotFound, or a
	// *entity.SelectorConfigError when the persisted config is malformed.
	GetConfig(ctx context.Context, sourceID string) (*entity.SelectorConfig, error)
}
