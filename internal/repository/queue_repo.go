package repository

import "context"

// QueueRepository defines the interface for a FIFO queue of job ids waiting to run.
type QueueRepository interface {
	// Push adds job ids to the end of the queue.
	Push(ctx context.Context, jobIDs ...string) error
	// Pop blocks up to the adapter's poll timeout and returns the next job id,
	// or ErrQueueEmpty.
	Pop(ctx context.Context) (string, error)
	// Size returns the current number of items in the queue.
	Size(ctx context.Context) (int64, error)
}
