package provider

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

func testConfig(id types.ProviderID, host string) *types.ProviderConfig {
	return &types.ProviderConfig{
		ID:      id,
		Name:    string(id),
		APIHost: host,
		APIKey:  "test-key",
	}
}

func TestBaseProviderKeyRotation(t *testing.T) {
	cfg := testConfig(types.ProviderSerper, "https://example.com")
	cfg.APIKey = "key-a, key-b"
	base := NewBaseProvider(cfg)

	assert.Equal(t, "key-a", base.APIKey())
	assert.Equal(t, "key-b", base.APIKey())
	assert.Equal(t, "key-a", base.APIKey())
}

func TestBaseProviderMaxResults(t *testing.T) {
	cfg := testConfig(types.ProviderSerper, "https://example.com")
	cfg.MaxResults = 30
	base := NewBaseProvider(cfg)

	// Payload constraint wins.
	payload := &types.QueryPayload{}
	payload.Constraints.MaxResultsPerQuery = 5
	assert.Equal(t, 5, base.MaxResults(payload, 100))

	// Falls back to the provider config, clamped to the API ceiling.
	assert.Equal(t, 30, base.MaxResults(nil, 100))
	assert.Equal(t, 20, base.MaxResults(nil, 20))

	// Default of ten when nothing is configured.
	base = NewBaseProvider(testConfig(types.ProviderSerper, "https://example.com"))
	assert.Equal(t, 10, base.MaxResults(nil, 100))
}

func TestBaseProviderDoRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	base := NewBaseProvider(testConfig(types.ProviderSerper, srv.URL))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = base.Do(req)
	require.Error(t, err)
	assert.True(t, types.IsRateLimit(err))

	var perr *types.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, "slow down", perr.Message)
}

func TestBaseProviderDoServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := NewBaseProvider(testConfig(types.ProviderSerper, srv.URL))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = base.Do(req)
	require.Error(t, err)
	assert.False(t, types.IsRateLimit(err))
}
