package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
)

type stubManager struct {
	pendingLimit int
	reapAfter    time.Duration
	err          error
}

func (m *stubManager) Get(context.Context, string) (*entity.CrawlJob, error) {
	return nil, nil
}

func (m *stubManager) Enqueue(context.Context, string) error {
	return nil
}

func (m *stubManager) Recrawl(context.Context, string) (*entity.CrawlJob, error) {
	return nil, nil
}

func (m *stubManager) EnqueuePending(_ context.Context, limit int) (int, error) {
	m.pendingLimit = limit
	return 2, m.err
}

func (m *stubManager) ReapStale(_ context.Context, olderThan time.Duration) (int, error) {
	m.reapAfter = olderThan
	return 1, m.err
}

func TestRegister(t *testing.T) {
	s := New(&stubManager{}, Options{PendingSchedule: "*/5 * * * *", ReaperSchedule: "@every 10m"}, zap.NewNop())
	require.NoError(t, s.Register(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)

	disabled := New(&stubManager{}, Options{}, zap.NewNop())
	require.NoError(t, disabled.Register(context.Background()))
	assert.Empty(t, disabled.cron.Entries())
}

func TestRegister_InvalidSchedule(t *testing.T) {
	s := New(&stubManager{}, Options{ReaperSchedule: "sometimes"}, zap.NewNop())
	assert.Error(t, s.Register(context.Background()))
}

func TestTasksCallManager(t *testing.T) {
	m := &stubManager{}
	s := New(m, Options{PendingBatch: 50, StaleAfter: 30 * time.Minute}, zap.NewNop())

	s.EnqueuePending(context.Background())
	s.ReapStale(context.Background())

	assert.Equal(t, 50, m.pendingLimit)
	assert.Equal(t, 30*time.Minute, m.reapAfter)

	m.err = errors.New("db down")
	s.EnqueuePending(context.Background())
	s.ReapStale(context.Background())
}

func TestStartStop(t *testing.T) {
	s := New(&stubManager{}, Options{PendingSchedule: "@every 1h"}, zap.NewNop())
	require.NoError(t, s.Register(context.Background()))
	s.Start()
	s.Stop()
}
