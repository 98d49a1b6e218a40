package httpfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/pkg/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 5
	defaultMaxBodyBytes = 10 << 20
)

// Config holds the HTTP fetcher settings.
type Config struct {
	Timeout         time.Duration
	MaxRedirects    int
	MaxBodyBytes    int64
	UserAgents      []string
	Proxies         []string
	HostRPS         float64
	HostBurst       int
	HostConcurrency int
	RespectRobots   bool

	// Limiter is shared with other fetchers when set. Otherwise one is built
	// from HostRPS, HostBurst and HostConcurrency.
	Limiter *HostLimiter
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}

// Fetcher retrieves pages over plain HTTP. It performs a single attempt per
// call and never retries.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	rotator *rotator
	limiter *HostLimiter
	robots  *robotsChecker
	logger  *zap.Logger
}

// New builds a Fetcher from cfg, filling unset values with defaults.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	cfg = cfg.withDefaults()

	rot, err := newRotator(cfg.Proxies, cfg.UserAgents)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = rot.proxy

	client := &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     transport,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects),
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewHostLimiter(cfg.HostRPS, cfg.HostBurst, cfg.HostConcurrency)
	}

	f := &Fetcher{
		cfg:     cfg,
		client:  client,
		rotator: rot,
		limiter: limiter,
		logger:  logger,
	}
	if cfg.RespectRobots {
		f.robots = newRobotsChecker(client)
	}
	return f, nil
}

// Fetch issues a GET for rawURL. Caller headers override the defaults.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*entity.FetchedPage, error) {
	start := time.Now()

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, f.fail("unknown", &entity.FetchError{Kind: entity.FetchNetwork, Detail: "invalid url", Err: err})
	}
	host := u.Hostname()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, f.fail(host, &entity.FetchError{Kind: entity.FetchNetwork, Detail: err.Error(), Err: err})
	}
	req.Header.Set("User-Agent", f.rotator.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,vi;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if f.robots != nil && !f.robots.allowed(ctx, u, req.Header.Get("User-Agent")) {
		return nil, f.fail(host, &entity.FetchError{Kind: entity.FetchRobotsDisallowed, Detail: "blocked by robots.txt"})
	}

	release, err := f.limiter.Acquire(ctx, host)
	if err != nil {
		return nil, f.fail(host, &entity.FetchError{Kind: entity.FetchNetwork, Detail: "waiting for host slot: " + err.Error(), Err: err})
	}
	defer release()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.fail(host, classifyTransportError(err, f.cfg.MaxRedirects))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, f.fail(host, &entity.FetchError{
			Kind:       entity.FetchHTTPStatus,
			Detail:     resp.Status,
			StatusCode: resp.StatusCode,
		})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, f.fail(host, classifyTransportError(err, f.cfg.MaxRedirects))
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := decodeBody(raw, contentType)
	if err != nil {
		f.logger.Warn("Charset decoding failed, using raw body", zap.String("url", rawURL), zap.Error(err))
		body = string(raw)
	}

	duration := time.Since(start)
	metrics.FetchDuration.WithLabelValues(host).Observe(duration.Seconds())

	return &entity.FetchedPage{
		RequestedURL: rawURL,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		ContentType:  contentType,
		Body:         body,
		FetchedAt:    start,
		Duration:     duration,
	}, nil
}

func (f *Fetcher) fail(host string, err *entity.FetchError) error {
	metrics.FetchErrorsTotal.WithLabelValues(string(err.Kind)).Inc()
	f.logger.Debug("Fetch failed", zap.String("host", host), zap.String("kind", string(err.Kind)), zap.String("detail", err.Detail))
	return err
}

func classifyTransportError(err error, maxRedirects int) *entity.FetchError {
	if errors.Is(err, errTooManyRedirects) {
		return &entity.FetchError{
			Kind:   entity.FetchTooManyRedirects,
			Detail: fmt.Sprintf("stopped after %d redirects", maxRedirects),
			Err:    err,
		}
	}

	detail := err.Error()
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		detail = "timeout: " + detail
	}
	return &entity.FetchError{Kind: entity.FetchNetwork, Detail: detail, Err: err}
}

// decodeBody converts the body to UTF-8 using the declared or sniffed charset.
func decodeBody(raw []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
