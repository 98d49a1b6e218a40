package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/content-crawler/internal/entity"
)

// SourceRepoImpl loads crawl source configs written by the admin layer.
type SourceRepoImpl struct {
	db DBTX
}

// NewSourceRepo creates a new instance of SourceRepoImpl.
func NewSourceRepo(db DBTX) *SourceRepoImpl {
	return &SourceRepoImpl{db: db}
}

// GetConfig decodes and validates the JSON columns of a crawl source.
func (r *SourceRepoImpl) GetConfig(ctx context.Context, sourceID string) (*entity.SelectorConfig, error) {
	query := `
		SELECT selectors, remove_elements, transforms, seo_config, image_config, request_headers, render_js
		FROM crawl_sources
		WHERE id = $1;
	`
	var (
		selectors, removeElements, transforms []byte
		seoConfig, imageConfig, headers       []byte
		cfg                                   entity.SelectorConfig
	)
	err := r.db.QueryRow(ctx, query, sourceID).Scan(
		&selectors,
		&removeElements,
		&transforms,
		&seoConfig,
		&imageConfig,
		&headers,
		&cfg.RenderJS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", sourceID, err)
	}

	columns := []struct {
		name string
		raw  []byte
		dest any
	}{
		{"selectors", selectors, &cfg.Selectors},
		{"removeElements", removeElements, &cfg.RemoveElements},
		{"transforms", transforms, &cfg.Transforms},
		{"seoConfig", seoConfig, &cfg.SEO},
		{"imageConfig", imageConfig, &cfg.Image},
		{"requestHeaders", headers, &cfg.RequestHeaders},
	}
	for _, c := range columns {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dest); err != nil {
			var cfgErr *entity.SelectorConfigError
			if errors.As(err, &cfgErr) {
				return nil, cfgErr
			}
			return nil, &entity.SelectorConfigError{Field: c.name, Reason: err.Error()}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
