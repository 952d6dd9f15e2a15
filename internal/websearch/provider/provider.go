// Package provider implements the search provider clients and the factory
// that builds them from configuration.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	searchhttp "github.com/searchlab/retrieval/internal/websearch/http"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// Provider is a single search backend. Search returns results in provider
// order with 1-based positions.
type Provider interface {
	Search(ctx context.Context, query string, payload *types.QueryPayload) ([]types.SearchResult, error)

	// ID returns the provider ID.
	ID() types.ProviderID

	// Validate validates the provider configuration.
	Validate() error
}

// BaseProvider provides common functionality for all providers.
type BaseProvider struct {
	config     *types.ProviderConfig
	httpClient *http.Client

	mu       sync.Mutex
	apiKeys  []string // comma-separated keys rotate per request
	keyIndex int
}

// NewBaseProvider creates a new base provider.
func NewBaseProvider(config *types.ProviderConfig) *BaseProvider {
	var apiKeys []string
	if config.APIKey != "" {
		for _, k := range strings.Split(config.APIKey, ",") {
			apiKeys = append(apiKeys, strings.TrimSpace(k))
		}
	}

	return &BaseProvider{
		config:     config,
		httpClient: searchhttp.NewClient(time.Duration(config.Timeout) * time.Second),
		apiKeys:    apiKeys,
	}
}

// ID returns the provider ID.
func (b *BaseProvider) ID() types.ProviderID {
	return b.config.ID
}

// Config returns the provider configuration.
func (b *BaseProvider) Config() *types.ProviderConfig {
	return b.config
}

// Validate validates the provider configuration.
func (b *BaseProvider) Validate() error {
	return b.config.Validate()
}

// APIKey returns the current API key, rotating when several are configured.
func (b *BaseProvider) APIKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.apiKeys) == 0 {
		return ""
	}
	key := b.apiKeys[b.keyIndex]
	b.keyIndex = (b.keyIndex + 1) % len(b.apiKeys)
	return key
}

// MaxResults resolves the per-call result ceiling: the payload constraint
// when set, else the provider config, else ten, never above limit.
func (b *BaseProvider) MaxResults(payload *types.QueryPayload, limit int) int {
	n := 0
	if payload != nil {
		n = payload.Constraints.MaxResultsPerQuery
	}
	if n <= 0 {
		n = b.config.MaxResults
	}
	if n <= 0 {
		n = 10
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// Do executes the request and enforces a 2xx status, translating failures
// into ProviderError so rate-limit responses stay recognizable.
func (b *BaseProvider) Do(req *http.Request) (*http.Response, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &types.ProviderError{
			Provider: b.config.ID,
			Code:     "REQUEST_FAILED",
			Message:  "failed to execute request",
			Err:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		perr := &types.ProviderError{
			Provider:   b.config.ID,
			Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			perr.Err = types.ErrProviderRateLimited
		}
		return nil, perr
	}

	return resp, nil
}

func defaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   "searchrank/1.0",
	}
}
