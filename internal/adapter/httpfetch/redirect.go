package httpfetch

import (
	"errors"
	"net/http"
)

// errTooManyRedirects is returned from CheckRedirect once the hop limit is hit.
var errTooManyRedirects = errors.New("too many redirects")

// redirectPolicy follows at most maxHops redirects.
func redirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxHops {
			return errTooManyRedirects
		}
		return nil
	}
}
