package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/user/content-crawler/internal/entity"
)

// trackingParams are stripped during normalization. Keys ending in "*" match by prefix.
var trackingParams = []string{
	"utm_*",
	"fbclid",
	"gclid",
	"gclsrc",
	"dclid",
	"msclkid",
	"mc_cid",
	"mc_eid",
	"_ga",
	"igshid",
	"yclid",
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize canonicalizes a URL into a stable dedup key: lowercase scheme and
// host, no default port, no trailing slash (except the root path), no
// fragment, and no tracking parameters. Remaining query parameters keep their
// original order. Normalize is idempotent.
func Normalize(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", &entity.InvalidURLError{URL: rawURL, Reason: "empty input"}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &entity.InvalidURLError{URL: rawURL, Reason: err.Error()}
	}

	scheme := strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return "", &entity.InvalidURLError{URL: rawURL, Reason: "scheme must be http or https"}
	}
	if u.Hostname() == "" {
		return "", &entity.InvalidURLError{URL: rawURL, Reason: "missing host"}
	}

	u.Scheme = scheme
	u.Host = normalizeHost(u, scheme)
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = cleanQuery(u.RawQuery)
	u.ForceQuery = false
	normalizePath(u)

	return u.String(), nil
}

// StripFragment returns rawURL exactly as given apart from its fragment.
func StripFragment(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &entity.InvalidURLError{URL: rawURL, Reason: err.Error()}
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

func normalizeHost(u *url.URL, scheme string) string {
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port == "" || port == defaultPorts[scheme] {
		return host
	}
	return host + ":" + port
}

func normalizePath(u *url.URL) {
	// Trim the escaped form so an encoded slash (%2F) is kept.
	escaped := strings.TrimRight(u.EscapedPath(), "/")
	if escaped == "" {
		u.Path = "/"
		u.RawPath = ""
		return
	}
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return
	}
	u.Path = path
	u.RawPath = escaped
}

// cleanQuery removes tracking parameters from the raw query, keeping the
// order and encoding of everything else untouched.
func cleanQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = part[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if isTrackingParam(strings.ToLower(key)) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

func isTrackingParam(key string) bool {
	for _, p := range trackingParams {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
			continue
		}
		if key == p {
			return true
		}
	}
	return false
}

// HashURL creates a SHA256 hash of a URL string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(strings.TrimSpace(relative))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}

// Origin returns scheme://host[:port] of a URL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &entity.InvalidURLError{URL: rawURL, Reason: "missing scheme or host"}
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// Host returns the lowercased hostname of a URL, or "unknown".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
