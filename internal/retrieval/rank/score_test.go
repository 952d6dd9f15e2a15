package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

func TestTermOverlap(t *testing.T) {
	tests := []struct {
		name   string
		result types.SearchResult
		query  string
		want   float64
	}{
		{
			name:   "all terms in title",
			result: types.SearchResult{Title: "Go concurrency patterns"},
			query:  "go concurrency",
			want:   1.5,
		},
		{
			name:   "terms split across title and snippet",
			result: types.SearchResult{Title: "Go tutorial", Snippet: "covers concurrency"},
			query:  "go concurrency",
			want:   1.25,
		},
		{
			name:   "no terms match",
			result: types.SearchResult{Title: "Cooking", Snippet: "recipes"},
			query:  "go concurrency",
			want:   0,
		},
		{
			name:   "single character terms ignored",
			result: types.SearchResult{Title: "a b c"},
			query:  "a b",
			want:   0,
		},
		{
			name:   "empty query",
			result: types.SearchResult{Title: "anything"},
			query:  "",
			want:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TermOverlap(&tt.result, tt.query), 1e-9)
		})
	}
}

func TestRelevanceScore(t *testing.T) {
	res := types.SearchResult{Title: "Go concurrency patterns explained"}

	// Caps at 1 even when every term hits the title.
	assert.Equal(t, 1.0, RelevanceScore(&res, "go concurrency patterns"))

	// Blank query is neutral.
	assert.Equal(t, 0.5, RelevanceScore(&res, "   "))

	// Query with only single-character tokens is neutral too.
	assert.Equal(t, 0.5, RelevanceScore(&res, "a b c"))
}

func TestPositionScore(t *testing.T) {
	assert.Equal(t, 1.0, positionScore(1, 10))
	assert.InDelta(t, 0.1, positionScore(10, 10), 1e-9)
	assert.True(t, positionScore(1, 10) > positionScore(5, 10))

	// Degenerate inputs stay in range.
	assert.Equal(t, 1.0, positionScore(3, 0))
	assert.Equal(t, 1.0, positionScore(0, 5))
}

func TestParseDate(t *testing.T) {
	ts, ok := parseDate("2024-03-15T12:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ts)

	ts, ok = parseDate("published in 2021")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), ts)

	_, ok = parseDate("last week")
	assert.False(t, ok)

	_, ok = parseDate("")
	assert.False(t, ok)
}

func TestScoreBoundsAndWeightScaleInvariance(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	credibility := map[string]float64{
		"trusted.example.com": 0.9,
		"meh.example.com":     0.3,
	}

	input := []types.SearchResult{
		{URL: "https://trusted.example.com/a", Title: "go concurrency patterns", Position: 1, Domain: "trusted.example.com", PublishedDate: "2024-05-30"},
		{URL: "https://meh.example.com/b", Title: "go tutorial", Snippet: "concurrency basics", Position: 2, Domain: "meh.example.com", PublishedDate: "2023-01-01"},
		{URL: "https://unknown.example.com/c", Title: "cooking recipes", Position: 3, Domain: "unknown.example.com"},
	}

	newRanker := func(w Weights) *Ranker {
		r := New(Config{Weights: w}, nil, nil, nil)
		r.now = func() time.Time { return now }
		return r
	}

	w := Weights{Position: 0.30, Domain: 0.35, Recency: 0.15, Relevance: 0.20}
	tripled := Weights{Position: 0.90, Domain: 1.05, Recency: 0.45, Relevance: 0.60}

	base := newRanker(w).score(input, credibility, true, "go concurrency")
	scaled := newRanker(tripled).score(input, credibility, true, "go concurrency")

	require.Len(t, scaled, len(base))
	for i := range base {
		assert.GreaterOrEqual(t, base[i].score, 0.0)
		assert.LessOrEqual(t, base[i].score, 1.0)
		// Scaling every weight by the same constant changes nothing.
		assert.InDelta(t, base[i].score, scaled[i].score, 1e-9)
	}
	assert.Greater(t, base[0].score, base[1].score)
	assert.Greater(t, base[1].score, base[2].score)
}

func TestRecencyScore(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		published     string
		timeSensitive bool
		want          float64
	}{
		{"not time sensitive", "2020-01-01", false, 0.5},
		{"unparseable date", "recently", true, 0.5},
		{"today", "2024-06-01", true, 1.0},
		{"within a month", "2024-05-15", true, 0.95},
		{"within a quarter", "2024-04-01", true, 0.8},
		{"within a year", "2023-09-01", true, 0.5},
		{"older than a year", "2020-01-01", true, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := types.SearchResult{PublishedDate: tt.published}
			assert.Equal(t, tt.want, recencyScore(&res, tt.timeSensitive, now))
		})
	}
}
