// Package http builds the shared HTTP client used by search providers.
package http

import (
	"net/http"
	"time"
)

// DefaultTimeout applies when a provider config names none.
const DefaultTimeout = 10 * time.Second

// NewClient creates an HTTP client with connection pooling suited to
// repeated calls against a small set of provider hosts.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
