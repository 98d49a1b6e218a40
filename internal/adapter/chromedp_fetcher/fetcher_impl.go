package chromedp_fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/content-crawler/internal/entity"
	"github.com/user/content-crawler/internal/repository"
	"github.com/user/content-crawler/pkg/utils"
)

const defaultUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36`

// HostGate throttles requests per host. httpfetch.HostLimiter satisfies it.
type HostGate interface {
	Acquire(ctx context.Context, host string) (func(), error)
}

// ChromedpFetcher renders pages in a shared headless Chrome, one tab per fetch.
type ChromedpFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	tabs        chan struct{}
	hosts       HostGate
	logger      *zap.Logger

	startOnce    sync.Once
	startErr     error
	browserCtx   context.Context
	closeBrowser context.CancelFunc
}

var _ repository.PageFetcher = (*ChromedpFetcher)(nil)

// NewChromedpFetcher creates a fetcher that keeps at most maxTabs pages open.
// A nil hosts gate leaves hosts unthrottled. The browser is started on first use.
func NewChromedpFetcher(maxTabs int, pageLoadTimeout time.Duration, hosts HostGate, logger *zap.Logger) *ChromedpFetcher {
	if maxTabs <= 0 {
		maxTabs = 1
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(defaultUserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpFetcher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     pageLoadTimeout,
		tabs:        make(chan struct{}, maxTabs),
		hosts:       hosts,
		logger:      logger,
	}
}

func (c *ChromedpFetcher) start() error {
	c.startOnce.Do(func() {
		c.browserCtx, c.closeBrowser = chromedp.NewContext(c.allocCtx)
		c.startErr = chromedp.Run(c.browserCtx)
	})
	return c.startErr
}

// Fetch navigates to url and returns the rendered document.
func (c *ChromedpFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*entity.FetchedPage, error) {
	if c.hosts != nil {
		release, err := c.hosts.Acquire(ctx, utils.Host(url))
		if err != nil {
			return nil, &entity.FetchError{Kind: entity.FetchNetwork, Detail: "waiting for host slot: " + err.Error(), Err: err}
		}
		defer release()
	}

	if err := c.start(); err != nil {
		return nil, &entity.FetchError{Kind: entity.FetchNetwork, Detail: "browser unavailable: " + err.Error(), Err: err}
	}

	select {
	case c.tabs <- struct{}{}:
		defer func() { <-c.tabs }()
	case <-ctx.Done():
		return nil, &entity.FetchError{Kind: entity.FetchNetwork, Detail: ctx.Err().Error(), Err: ctx.Err()}
	}

	// Create a new tab in the shared browser
	taskCtx, cancel := chromedp.NewContext(c.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	// Create a timeout for the entire fetch task
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, c.timeout)
	defer cancelTimeout()

	start := time.Now()

	if err := chromedp.Run(taskCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(toNetworkHeaders(headers)),
	); err != nil {
		return nil, &entity.FetchError{Kind: entity.FetchNetwork, Detail: err.Error(), Err: err}
	}

	resp, err := chromedp.RunResponse(taskCtx, chromedp.Navigate(url))
	if err != nil {
		c.logger.Debug("Navigation failed", zap.String("url", url), zap.Error(err))
		return nil, &entity.FetchError{Kind: entity.FetchNetwork, Detail: err.Error(), Err: err}
	}
	if fetchErr := statusError(resp); fetchErr != nil {
		return nil, fetchErr
	}

	var html, location string
	if err := chromedp.Run(taskCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	); err != nil {
		return nil, &entity.FetchError{Kind: entity.FetchNetwork, Detail: err.Error(), Err: err}
	}

	return &entity.FetchedPage{
		RequestedURL: url,
		FinalURL:     location,
		StatusCode:   int(resp.Status),
		ContentType:  resp.MimeType,
		Body:         html,
		FetchedAt:    start,
		Duration:     time.Since(start),
	}, nil
}

// Close shuts down the browser.
func (c *ChromedpFetcher) Close() {
	if c.closeBrowser != nil {
		c.closeBrowser()
	}
	c.allocCancel()
}

func toNetworkHeaders(headers map[string]string) network.Headers {
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return h
}

func statusError(resp *network.Response) *entity.FetchError {
	if resp == nil {
		return &entity.FetchError{Kind: entity.FetchNetwork, Detail: "no response for main document"}
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return &entity.FetchError{
			Kind:       entity.FetchHTTPStatus,
			Detail:     fmt.Sprintf("%d %s", resp.Status, resp.StatusText),
			StatusCode: int(resp.Status),
		}
	}
	return nil
}
