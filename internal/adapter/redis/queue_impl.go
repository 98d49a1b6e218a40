package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/content-crawler/internal/repository"
)

const (
	jobQueueKey        = "crawler:jobs:queue"
	defaultPollTimeout = 2 * time.Second
)

// QueueRepoImpl provides a concrete implementation for the QueueRepository interface using Redis Lists.
type QueueRepoImpl struct {
	client      *redis.Client
	pollTimeout time.Duration
}

// NewQueueRepo creates a new instance of QueueRepoImpl. A non-positive
// pollTimeout falls back to two seconds.
func NewQueueRepo(client *redis.Client, pollTimeout time.Duration) *QueueRepoImpl {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &QueueRepoImpl{client: client, pollTimeout: pollTimeout}
}

// Push adds job ids to the left side of the Redis list (acting as a queue).
func (r *QueueRepoImpl) Push(ctx context.Context, jobIDs ...string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	values := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		values[i] = id
	}
	return r.client.LPush(ctx, jobQueueKey, values...).Err()
}

// Pop removes and returns a job id from the right side of the Redis list,
// blocking up to the poll timeout.
func (r *QueueRepoImpl) Pop(ctx context.Context) (string, error) {
	res, err := r.client.BRPop(ctx, r.pollTimeout, jobQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	if err != nil {
		return "", err
	}
	// BRPOP replies with [key, value].
	return res[1], nil
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, jobQueueKey).Result()
}
