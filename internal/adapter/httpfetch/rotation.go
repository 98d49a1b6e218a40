package httpfetch

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// rotator handles the rotation of proxies and user agents.
type rotator struct {
	userAgents []string

	mu         sync.Mutex
	proxies    []*url.URL
	proxyIndex int
}

func newRotator(proxies, userAgents []string) (*rotator, error) {
	r := &rotator{userAgents: userAgents}
	if len(r.userAgents) == 0 {
		r.userAgents = defaultUserAgents
	}
	for _, p := range proxies {
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", p)
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

// proxy returns the next proxy, rotating sequentially. It matches the
// signature of http.Transport.Proxy; nil means a direct connection.
func (r *rotator) proxy(_ *http.Request) (*url.URL, error) {
	if len(r.proxies) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proxies[r.proxyIndex]
	r.proxyIndex = (r.proxyIndex + 1) % len(r.proxies)
	return p, nil
}

// userAgent returns a random user agent string.
func (r *rotator) userAgent() string {
	return r.userAgents[rand.IntN(len(r.userAgents))]
}
