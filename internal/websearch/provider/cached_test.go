package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/retrieval/internal/retrieval/cache"
	"github.com/searchlab/retrieval/internal/retrieval/monitor"
	"github.com/searchlab/retrieval/internal/retrieval/ratelimit"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

func TestCachedProviderCacheMissThenHit(t *testing.T) {
	inner := &stubProvider{
		id: types.ProviderSerper,
		results: []types.SearchResult{
			{URL: "https://a.example.com", Title: "A", SourceAPI: "serper", Position: 1},
		},
	}
	c := cache.New(nil, time.Hour, nil)
	m := monitor.New()
	p := NewCachedProvider(inner, c, nil, m, nil)

	results, err := p.Search(context.Background(), "go testing", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, inner.calls)

	// Second call is served from the cache without touching the network.
	results, err = p.Search(context.Background(), "go testing", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, inner.calls)

	// Query normalization makes case and whitespace variants hit too.
	_, err = p.Search(context.Background(), "  GO Testing ", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	stats := m.Stats()
	assert.Equal(t, 3, stats.TotalSearches)
	assert.Equal(t, 2, stats.CacheHits)
}

func TestCachedProviderAbsorbsFailure(t *testing.T) {
	inner := &stubProvider{id: types.ProviderSerper, err: errors.New("connection refused")}
	m := monitor.New()
	limiter := ratelimit.New(ratelimit.Config{}, nil, nil)
	p := NewCachedProvider(inner, cache.New(nil, time.Hour, nil), limiter, m, nil)

	results, err := p.Search(context.Background(), "go testing", nil)
	assert.NoError(t, err)
	assert.Empty(t, results)

	stats := m.Stats()
	assert.Equal(t, 1, stats.FailedSearches)
	// The failure trips the limiter's error accounting, not its windows.
	assert.True(t, limiter.BackoffUntil(types.ProviderSerper).IsZero())
}

func TestCachedProviderRateLimitErrorTriggersBackoff(t *testing.T) {
	inner := &stubProvider{
		id: types.ProviderSerper,
		err: &types.ProviderError{
			Provider:   types.ProviderSerper,
			Code:       "HTTP_429",
			StatusCode: 429,
		},
	}
	limiter := ratelimit.New(ratelimit.Config{}, nil, nil)
	p := NewCachedProvider(inner, nil, limiter, nil, nil)

	results, err := p.Search(context.Background(), "go testing", nil)
	assert.NoError(t, err)
	assert.Empty(t, results)

	// A rate-limit error escalates backoff on the first occurrence.
	assert.False(t, limiter.BackoffUntil(types.ProviderSerper).IsZero())
}

func TestCachedProviderEmptyResultsNotCached(t *testing.T) {
	inner := &stubProvider{id: types.ProviderSerper}
	p := NewCachedProvider(inner, cache.New(nil, time.Hour, nil), nil, nil, nil)

	_, err := p.Search(context.Background(), "go testing", nil)
	require.NoError(t, err)
	_, err = p.Search(context.Background(), "go testing", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedProviderContextCancelledWhilePacing(t *testing.T) {
	inner := &stubProvider{id: types.ProviderSerper, results: []types.SearchResult{{URL: "https://a.example.com"}}}
	limiter := ratelimit.New(ratelimit.Config{}, nil, nil)
	// Force a pending backoff so pacing has to sleep.
	limiter.RecordError(types.ProviderSerper, true)
	p := NewCachedProvider(inner, nil, limiter, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Search(ctx, "go testing", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, inner.calls)
}
