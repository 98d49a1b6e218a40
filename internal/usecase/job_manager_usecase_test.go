package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
)

func TestEnqueue(t *testing.T) {
	jobs := newMemJobRepo(pendingJob("1", "https://a.example/1", entity.KindArticle))
	queue := &fakeQueue{}
	m := NewJobManager(jobs, queue, nil, zap.NewNop())

	require.NoError(t, m.Enqueue(context.Background(), "1"))
	assert.Equal(t, []string{"1"}, queue.contents())

	assert.ErrorIs(t, m.Enqueue(context.Background(), "missing"), entity.ErrJobNotFound)
}

func TestEnqueue_RejectsFinishedJob(t *testing.T) {
	job := pendingJob("1", "https://a.example/1", entity.KindArticle)
	job.Status = entity.StatusPendingReview
	queue := &fakeQueue{}
	m := NewJobManager(newMemJobRepo(job), queue, nil, zap.NewNop())

	err := m.Enqueue(context.Background(), "1")
	var conflict *entity.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, entity.ConflictAlreadyDone, conflict.Reason)
	assert.Empty(t, queue.contents())
}

func TestEnqueuePending(t *testing.T) {
	base := time.Now()
	older := pendingJob("old", "https://a.example/1", entity.KindArticle)
	older.CreatedAt = base.Add(-time.Hour)
	newer := pendingJob("new", "https://a.example/2", entity.KindArticle)
	newer.CreatedAt = base
	done := pendingJob("done", "https://a.example/3", entity.KindArticle)
	done.Status = entity.StatusDuplicate

	queue := &fakeQueue{}
	m := NewJobManager(newMemJobRepo(older, newer, done), queue, nil, zap.NewNop())

	n, err := m.EnqueuePending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"old", "new"}, queue.contents())

	n, err = NewJobManager(newMemJobRepo(done), queue, nil, zap.NewNop()).EnqueuePending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecrawl(t *testing.T) {
	job := pendingJob("1", "https://shop.example/p/1", entity.KindProduct)
	job.Status = entity.StatusDuplicate
	job.NormalizedURL = "https://shop.example/p/1"
	job.ErrorMessage = "duplicate of product:42"
	jobs := newMemJobRepo(job)
	cache := &fakeDedupCache{}
	m := NewJobManager(jobs, &fakeQueue{}, cache, zap.NewNop())

	got, err := m.Recrawl(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Empty(t, jobs.snapshot("1").ErrorMessage)
	assert.Equal(t, []string{"product https://shop.example/p/1"}, cache.forgets)
}

func TestRecrawl_InFlight(t *testing.T) {
	job := pendingJob("1", "https://shop.example/p/1", entity.KindProduct)
	job.Status = entity.StatusProcessing
	m := NewJobManager(newMemJobRepo(job), &fakeQueue{}, nil, zap.NewNop())

	_, err := m.Recrawl(context.Background(), "1")
	var conflict *entity.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, entity.ConflictInFlight, conflict.Reason)
}

func TestReapStale(t *testing.T) {
	stale := pendingJob("stale", "https://a.example/1", entity.KindArticle)
	stale.Status = entity.StatusProcessing
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	fresh := pendingJob("fresh", "https://a.example/2", entity.KindArticle)
	fresh.Status = entity.StatusProcessing
	fresh.UpdatedAt = time.Now()
	jobs := newMemJobRepo(stale, fresh)
	m := NewJobManager(jobs, &fakeQueue{}, nil, zap.NewNop())

	n, err := m.ReapStale(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, entity.StatusFailed, jobs.snapshot("stale").Status)
	assert.Equal(t, StaleRunMessage, jobs.snapshot("stale").ErrorMessage)
	assert.Equal(t, entity.StatusProcessing, jobs.snapshot("fresh").Status)
}
