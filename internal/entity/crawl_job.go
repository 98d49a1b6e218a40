package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContentKind is the shape of record a job extracts.
type ContentKind string

const (
	KindArticle ContentKind = "article"
	KindProduct ContentKind = "product"
)

// ParseContentKind validates a persisted kind string.
func ParseContentKind(s string) (ContentKind, error) {
	switch k := ContentKind(s); k {
	case KindArticle, KindProduct:
		return k, nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// CrawlJob mirrors the `crawl_jobs` PostgreSQL table schema.
type CrawlJob struct {
	ID            string
	URL           string
	NormalizedURL string
	Type          ContentKind
	SourceID      *string
	Status        JobStatus
	RetryCount    int
	ErrorMessage  string
	ExtractedData json.RawMessage // Stored as JSONB, present only in pending_review
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JobOutcome is the terminal result of one run, written back in a single update.
type JobOutcome struct {
	Status        JobStatus
	NormalizedURL string
	ErrorMessage  string
	ExtractedData json.RawMessage
	ProcessedAt   time.Time
}

// RecordRef identifies an imported article or product in duplicate messages.
func RecordRef(kind ContentKind, id string) string {
	return string(kind) + ":" + id
}

// JobRef identifies another crawl job in duplicate messages.
func JobRef(id string) string {
	return "crawl_job:" + id
}
