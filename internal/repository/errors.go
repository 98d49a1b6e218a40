package repository

import "errors"

var (
	// ErrQueueEmpty is returned by QueueRepository.Pop when nothing arrived in time.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrStaleOutcome is returned by JobRepository.SaveOutcome when the job left
	// processing before the run finished, for example after being reaped.
	ErrStaleOutcome = errors.New("job is no longer processing")
)
