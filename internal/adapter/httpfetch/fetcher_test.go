package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
)

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return f
}

func requireFetchError(t *testing.T, err error, kind entity.FetchErrorKind) *entity.FetchError {
	t.Helper()
	var fetchErr *entity.FetchError
	require.True(t, errors.As(err, &fetchErr), "expected FetchError, got %v", err)
	assert.Equal(t, kind, fetchErr.Kind)
	return fetchErr
}

func TestFetch_MergesHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	page, err := f.Fetch(context.Background(), srv.URL, map[string]string{
		"user-agent": "custom-agent/1.0",
		"Referer":    "https://shop.test/",
	})
	require.NoError(t, err)

	assert.Equal(t, "custom-agent/1.0", got.Get("User-Agent"))
	assert.Equal(t, "https://shop.test/", got.Get("Referer"))
	assert.Contains(t, got.Get("Accept"), "text/html")
	assert.NotEmpty(t, got.Get("Accept-Language"))
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Body, "ok")
}

func TestFetch_DefaultUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, Config{}).Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Contains(t, defaultUserAgents, ua)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, Config{}).Fetch(context.Background(), srv.URL+"/missing", nil)
	fetchErr := requireFetchError(t, err, entity.FetchHTTPStatus)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, fetchErr.Error(), "404")
}

func TestFetch_FollowsShortRedirectChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<h1>final</h1>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newTestFetcher(t, Config{MaxRedirects: 2}).Fetch(context.Background(), srv.URL+"/start", nil)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/final", page.FinalURL)
	assert.Equal(t, srv.URL+"/start", page.RequestedURL)
}

func TestFetch_TooManyRedirects(t *testing.T) {
	var hops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hops.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n), http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, Config{}).Fetch(context.Background(), srv.URL, nil)
	requireFetchError(t, err, entity.FetchTooManyRedirects)
	assert.Equal(t, int32(defaultMaxRedirects+1), hops.Load())
}

func TestFetch_TimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, Config{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL, nil)
	fetchErr := requireFetchError(t, err, entity.FetchNetwork)
	assert.Contains(t, fetchErr.Detail, "timeout")
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newTestFetcher(t, Config{}).Fetch(context.Background(), addr, nil)
	requireFetchError(t, err, entity.FetchNetwork)
}

func TestFetch_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>caf\xe9</p>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher(t, Config{}).Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>café</p>", page.Body)
}

func TestFetch_CapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, strings.Repeat("a", 100))
	}))
	defer srv.Close()

	page, err := newTestFetcher(t, Config{MaxBodyBytes: 10}).Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, page.Body, 10)
}

func TestFetch_RespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>public</p>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(t, Config{RespectRobots: true})

	_, err := f.Fetch(context.Background(), srv.URL+"/private/page", nil)
	requireFetchError(t, err, entity.FetchRobotsDisallowed)

	_, err = f.Fetch(context.Background(), srv.URL+"/public", nil)
	assert.NoError(t, err)
}

func TestFetch_HostConcurrencyCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{HostConcurrency: 1})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), srv.URL, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestFetch_CancelledWhileWaitingForHost(t *testing.T) {
	f := newTestFetcher(t, Config{HostRPS: 0.001, HostBurst: 1})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := f.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL, nil)
	requireFetchError(t, err, entity.FetchNetwork)
}

func TestFetch_SharedLimiterSpansFetchers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	limiter := NewHostLimiter(0.001, 1, 0)
	first := newTestFetcher(t, Config{Limiter: limiter})
	second := newTestFetcher(t, Config{Limiter: limiter})

	_, err := first.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = second.Fetch(ctx, srv.URL, nil)
	requireFetchError(t, err, entity.FetchNetwork)
}

func TestHostLimiter_HostIsCaseInsensitive(t *testing.T) {
	limiter := NewHostLimiter(0, 1, 1)

	release, err := limiter.Acquire(context.Background(), "Shop.Test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limiter.Acquire(ctx, "shop.test")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release, err = limiter.Acquire(context.Background(), "shop.test")
	require.NoError(t, err)
	release()
}

func TestRotator_RoundRobinProxies(t *testing.T) {
	r, err := newRotator([]string{"http://p1:8000", "http://p2:8000"}, nil)
	require.NoError(t, err)

	var hosts []string
	for i := 0; i < 3; i++ {
		u, err := r.proxy(nil)
		require.NoError(t, err)
		hosts = append(hosts, u.Host)
	}
	assert.Equal(t, []string{"p1:8000", "p2:8000", "p1:8000"}, hosts)
}

func TestRotator_NoProxies(t *testing.T) {
	r, err := newRotator(nil, []string{"only-agent"})
	require.NoError(t, err)

	u, err := r.proxy(nil)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, "only-agent", r.userAgent())
}

func TestRotator_InvalidProxy(t *testing.T) {
	_, err := newRotator([]string{"::bad"}, nil)
	assert.Error(t, err)
}
