package httpfetch

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// HostLimiter spaces out and caps concurrent requests per host. One limiter
// can be shared by several fetchers.
type HostLimiter struct {
	rps         rate.Limit
	burst       int
	concurrency int64

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// NewHostLimiter builds a limiter. Non-positive rps disables rate limiting and
// non-positive concurrency disables the in-flight cap.
func NewHostLimiter(rps float64, burst, concurrency int) *HostLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		rps:         limit,
		burst:       burst,
		concurrency: int64(concurrency),
		hosts:       make(map[string]*hostSlot),
	}
}

func (h *HostLimiter) slot(host string) *hostSlot {
	host = strings.ToLower(host)
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.hosts[host]
	if !ok {
		s = &hostSlot{limiter: rate.NewLimiter(h.rps, h.burst)}
		if h.concurrency > 0 {
			s.sem = semaphore.NewWeighted(h.concurrency)
		}
		h.hosts[host] = s
	}
	return s
}

// Acquire blocks until the host has a free slot and a rate token. The returned
// release func must be called once the request is done.
func (h *HostLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	s := h.slot(host)
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		if s.sem != nil {
			s.sem.Release(1)
		}
		return nil, err
	}
	return func() {
		if s.sem != nil {
			s.sem.Release(1)
		}
	}, nil
}
