package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
)

type recordingRunner struct {
	mu   sync.Mutex
	ran  []string
	hook func(ctx context.Context, jobID string)
}

func (r *recordingRunner) RunJob(ctx context.Context, jobID string) (*RunResult, error) {
	if r.hook != nil {
		r.hook(ctx, jobID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, jobID)
	if jobID == "busy" {
		return nil, &entity.ConflictError{JobID: jobID, Status: entity.StatusProcessing, Reason: entity.ConflictInFlight}
	}
	return &RunResult{JobID: jobID, Status: entity.StatusPendingReview}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func TestDispatcher_DrainsQueue(t *testing.T) {
	queue := &fakeQueue{items: []string{"1", "busy", "2", "3"}}
	runner := &recordingRunner{}
	d := NewDispatcher(queue, runner, 2, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return runner.count() == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
	assert.ElementsMatch(t, []string{"1", "busy", "2", "3"}, runner.ran)
}

func TestDispatcher_ShutdownLetsRunFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runErr error
	runner := &recordingRunner{hook: func(ctx context.Context, _ string) {
		close(started)
		<-release
		runErr = ctx.Err()
	}}
	d := NewDispatcher(&fakeQueue{items: []string{"1"}}, runner, 1, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	<-started
	cancel()
	close(release)

	require.NoError(t, <-errCh)
	assert.NoError(t, runErr)
	assert.Equal(t, 1, runner.count())
}
