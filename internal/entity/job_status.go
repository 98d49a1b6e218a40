package entity

import "fmt"

// JobStatus is a state of the crawl job lifecycle.
type JobStatus string

const (
	StatusPending       JobStatus = "pending"
	StatusProcessing    JobStatus = "processing"
	StatusDuplicate     JobStatus = "duplicate"
	StatusPendingReview JobStatus = "pending_review"
	StatusFailed        JobStatus = "failed"
)

var validTransitions = map[JobStatus][]JobStatus{
	StatusPending: {
		StatusProcessing,
	},
	StatusProcessing: {
		StatusDuplicate,
		StatusPendingReview,
		StatusFailed,
	},
	StatusFailed: {
		StatusProcessing, // operator-triggered re-run
		StatusPending,    // explicit re-crawl
	},
	StatusDuplicate: {
		StatusPending,
	},
	StatusPendingReview: {
		StatusPending,
	},
}

// ParseJobStatus validates a persisted status string.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}

// ValidateTransition returns an error if moving from one status to another is not allowed.
func ValidateTransition(from, to JobStatus) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown source status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition from %s to %s", from, to)
}

// RunnableStatuses are the statuses from which a run may claim the job.
func RunnableStatuses() []JobStatus {
	return []JobStatus{StatusPending, StatusFailed}
}

// RecrawlableStatuses are the statuses an operator may reset to pending.
func RecrawlableStatuses() []JobStatus {
	return []JobStatus{StatusFailed, StatusDuplicate, StatusPendingReview}
}

// CanRun reports whether a run may start from s.
func (s JobStatus) CanRun() bool {
	return ValidateTransition(s, StatusProcessing) == nil
}

// IsDone reports whether s records a prior completed attempt that must not be re-run silently.
func (s JobStatus) IsDone() bool {
	return s == StatusDuplicate || s == StatusPendingReview
}

// ConflictFor returns the conflict a run would hit from status s, or nil when runnable.
func ConflictFor(jobID string, s JobStatus) *ConflictError {
	switch {
	case s == StatusProcessing:
		return &ConflictError{JobID: jobID, Status: s, Reason: ConflictInFlight}
	case s.IsDone():
		return &ConflictError{JobID: jobID, Status: s, Reason: ConflictAlreadyDone}
	case !s.CanRun():
		return &ConflictError{JobID: jobID, Status: s, Reason: ConflictInvalidTransition}
	}
	return nil
}
