package usecase

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/repository"
)

// memJobRepo is an in-memory JobRepository with the same claim semantics as
// the postgres adapter.
type memJobRepo struct {
	mu         sync.Mutex
	jobs       map[string]*entity.CrawlJob
	saves      int
	saveCtxErr error
}

func newMemJobRepo(jobs ...*entity.CrawlJob) *memJobRepo {
	r := &memJobRepo{jobs: make(map[string]*entity.CrawlJob)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *memJobRepo) snapshot(id string) entity.CrawlJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.jobs[id]
}

func (r *memJobRepo) setStatus(id string, status entity.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].Status = status
}

func (r *memJobRepo) Get(_ context.Context, id string) (*entity.CrawlJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ClaimForRun(_ context.Context, id string) (*entity.CrawlJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	if conflict := entity.ConflictFor(id, j.Status); conflict != nil {
		return nil, conflict
	}
	j.Status = entity.StatusProcessing
	j.RetryCount++
	j.UpdatedAt = time.Now()
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) SaveOutcome(ctx context.Context, id string, o entity.JobOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCtxErr = ctx.Err()
	j, ok := r.jobs[id]
	if !ok {
		return entity.ErrJobNotFound
	}
	if j.Status != entity.StatusProcessing {
		return repository.ErrStaleOutcome
	}
	if err := entity.ValidateTransition(j.Status, o.Status); err != nil {
		return err
	}
	processedAt := o.ProcessedAt
	j.Status = o.Status
	j.NormalizedURL = o.NormalizedURL
	j.ErrorMessage = o.ErrorMessage
	j.ExtractedData = o.ExtractedData
	j.ProcessedAt = &processedAt
	r.saves++
	return nil
}

func (r *memJobRepo) ResetForRecrawl(_ context.Context, id string) (*entity.CrawlJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	if entity.ValidateTransition(j.Status, entity.StatusPending) != nil {
		reason := entity.ConflictInvalidTransition
		if j.Status == entity.StatusProcessing {
			reason = entity.ConflictInFlight
		}
		return nil, &entity.ConflictError{JobID: id, Status: j.Status, Reason: reason}
	}
	j.Status = entity.StatusPending
	j.ErrorMessage = ""
	j.ExtractedData = nil
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ListIDsByStatus(_ context.Context, status entity.JobStatus, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*entity.CrawlJob
	for _, j := range r.jobs {
		if j.Status == status {
			matched = append(matched, j)
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].CreatedAt.Before(matched[b].CreatedAt) })
	var ids []string
	for _, j := range matched {
		if len(ids) == limit {
			break
		}
		ids = append(ids, j.ID)
	}
	return ids, nil
}

func (r *memJobRepo) FailStale(_ context.Context, olderThan time.Time, message string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, j := range r.jobs {
		if j.Status == entity.StatusProcessing && j.UpdatedAt.Before(olderThan) {
			j.Status = entity.StatusFailed
			j.ErrorMessage = message
			ids = append(ids, j.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type fetchFunc func(ctx context.Context, url string, headers map[string]string) (*entity.FetchedPage, error)

type fakeFetcher struct {
	calls atomic.Int32
	fn    fetchFunc
}

func htmlFetcher(body string) *fakeFetcher {
	return &fakeFetcher{fn: func(_ context.Context, url string, _ map[string]string) (*entity.FetchedPage, error) {
		return &entity.FetchedPage{RequestedURL: url, FinalURL: url, StatusCode: 200, Body: body, FetchedAt: time.Now()}, nil
	}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*entity.FetchedPage, error) {
	f.calls.Add(1)
	return f.fn(ctx, url, headers)
}

type fakeDuplicates struct {
	ref   string
	found bool
	err   error
	calls atomic.Int32
}

func (d *fakeDuplicates) FindDuplicate(context.Context, string, entity.ContentKind, string) (string, bool, error) {
	d.calls.Add(1)
	return d.ref, d.found, d.err
}

type fakeSources struct {
	configs map[string]*entity.SelectorConfig
	err     error
}

func (s *fakeSources) GetConfig(_ context.Context, sourceID string) (*entity.SelectorConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg, ok := s.configs[sourceID]
	if !ok {
		return nil, entity.ErrSourceNotFound
	}
	return cfg, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	items []string
}

func (q *fakeQueue) Push(_ context.Context, ids ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, ids...)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context) (string, error) {
	q.mu.Lock()
	if len(q.items) > 0 {
		id := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return id, nil
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return "", repository.ErrQueueEmpty
	}
}

func (q *fakeQueue) Size(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *fakeQueue) contents() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items...)
}

type fakeDedupCache struct {
	mu      sync.Mutex
	forgets []string
}

func (c *fakeDedupCache) Forget(_ context.Context, normalizedURL string, kind entity.ContentKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgets = append(c.forgets, string(kind)+" "+normalizedURL)
	return nil
}

func strPtr(s string) *string { return &s }
