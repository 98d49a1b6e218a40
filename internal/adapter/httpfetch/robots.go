package httpfetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsCacheTTL     = 24 * time.Hour
	maxRobotsBodyBytes = 512 * 1024
)

// robotsChecker fetches and caches robots.txt rules per scheme and host.
type robotsChecker struct {
	client *http.Client

	mu    sync.RWMutex
	cache map[string]robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData // nil allows everything
	fetchedAt time.Time
}

func newRobotsChecker(client *http.Client) *robotsChecker {
	return &robotsChecker{client: client, cache: make(map[string]robotsEntry)}
}

// allowed reports whether userAgent may fetch u. Unreachable or unparsable
// robots files allow everything.
func (r *robotsChecker) allowed(ctx context.Context, u *url.URL, userAgent string) bool {
	key := u.Scheme + "://" + u.Host

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()

	if !ok || time.Since(entry.fetchedAt) > robotsCacheTTL {
		entry = robotsEntry{data: r.fetch(ctx, key+"/robots.txt", userAgent), fetchedAt: time.Now()}
		r.mu.Lock()
		r.cache[key] = entry
		r.mu.Unlock()
	}

	if entry.data == nil {
		return true
	}
	return entry.data.TestAgent(u.EscapedPath(), userAgent)
}

func (r *robotsChecker) fetch(ctx context.Context, robotsURL, userAgent string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
