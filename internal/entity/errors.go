package entity

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when no crawl job exists for an id.
var ErrJobNotFound = errors.New("crawl job not found")

// ErrSourceNotFound is returned when a job references a source that does not exist.
var ErrSourceNotFound = errors.New("crawl source not found")

// InvalidURLError reports a URL that cannot be normalized.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid url %q: %s", e.URL, e.Reason)
}

// FetchErrorKind classifies a failed page retrieval.
type FetchErrorKind string

const (
	FetchNetwork          FetchErrorKind = "network"
	FetchHTTPStatus       FetchErrorKind = "http_status"
	FetchTooManyRedirects FetchErrorKind = "too_many_redirects"
	FetchRobotsDisallowed FetchErrorKind = "robots_disallowed"
)

// FetchError is returned by page fetchers. It is always terminal for a run attempt.
type FetchError struct {
	Kind       FetchErrorKind
	Detail     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTPStatus {
		return fmt.Sprintf("fetch failed (%s): received status code %d", e.Kind, e.StatusCode)
	}
	if e.Detail == "" {
		return fmt.Sprintf("fetch failed (%s)", e.Kind)
	}
	return fmt.Sprintf("fetch failed (%s): %s", e.Kind, e.Detail)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Extraction failure reasons.
const (
	ReasonMissingSelectorConfig = "missing_selector_config"
	ReasonInvalidSelectorConfig = "invalid_selector_config"
	ReasonNoContentMatched      = "no_content_matched"
	ReasonParseFailed           = "parse_failed"
)

// ExtractionError is returned when a page cannot be turned into a record.
type ExtractionError struct {
	Reason string
	Detail string
}

func (e *ExtractionError) Error() string {
	if e.Detail == "" {
		return "extraction failed: " + e.Reason
	}
	return fmt.Sprintf("extraction failed: %s: %s", e.Reason, e.Detail)
}

// Conflict reasons.
const (
	ConflictInFlight          = "in_flight"
	ConflictAlreadyDone       = "already_done"
	ConflictInvalidTransition = "invalid_transition"
)

// ConflictError is returned when a job cannot move to the requested state.
// The job is left untouched.
type ConflictError struct {
	JobID  string
	Status JobStatus
	Reason string
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ConflictInFlight:
		return fmt.Sprintf("job %s is already processing", e.JobID)
	case ConflictAlreadyDone:
		return fmt.Sprintf("job %s is already done (status %s)", e.JobID, e.Status)
	default:
		return fmt.Sprintf("job %s cannot transition from status %s", e.JobID, e.Status)
	}
}

// SelectorConfigError reports an invalid selector configuration at load time.
type SelectorConfigError struct {
	Field  string
	Reason string
}

func (e *SelectorConfigError) Error() string {
	return fmt.Sprintf("selector config %s: %s", e.Field, e.Reason)
}
