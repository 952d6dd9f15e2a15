package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

func tavilyServer(t *testing.T, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*capture = body

		resp := map[string]any{
			"results": []map[string]any{
				{"title": "Doc", "url": "https://docs.example.com/go", "content": "doc content", "published_date": "2024-04-20"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestTavilySearch(t *testing.T) {
	var captured map[string]any
	srv := tavilyServer(t, &captured)
	defer srv.Close()

	p, err := NewTavilyProvider(testConfig(types.ProviderTavily, srv.URL))
	require.NoError(t, err)

	payload := &types.QueryPayload{Intent: types.IntentExplanatory}
	payload.Constraints.MaxResultsPerQuery = 8

	results, err := p.Search(context.Background(), "how go channels work", payload)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "how go channels work", captured["query"])
	assert.Equal(t, "advanced", captured["search_depth"])
	assert.Equal(t, "general", captured["topic"])
	assert.Equal(t, float64(8), captured["max_results"])
	assert.Equal(t, true, captured["include_answer"])
	assert.NotContains(t, captured, "time_range")

	res := results[0]
	assert.Equal(t, "https://docs.example.com/go", res.URL)
	assert.Equal(t, "doc content", res.Snippet)
	assert.Equal(t, "tavily", res.SourceAPI)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, "docs.example.com", res.Domain)
	assert.Equal(t, "2024-04-20", res.PublishedDate)
}

func TestTavilySearchNewsShaping(t *testing.T) {
	var captured map[string]any
	srv := tavilyServer(t, &captured)
	defer srv.Close()

	p, err := NewTavilyProvider(testConfig(types.ProviderTavily, srv.URL))
	require.NoError(t, err)

	payload := &types.QueryPayload{
		Intent:          types.IntentNews,
		TimeSensitivity: types.TimeSensitivity{IsTimeSensitive: true},
	}
	payload.Constraints.MaxResultsPerQuery = 50

	_, err = p.Search(context.Background(), "go release news", payload)
	require.NoError(t, err)

	assert.Equal(t, "news", captured["topic"])
	assert.Equal(t, "basic", captured["search_depth"])
	assert.Equal(t, "month", captured["time_range"])
	// Clamped to the API ceiling.
	assert.Equal(t, float64(20), captured["max_results"])
}

func TestTavilySearchDepth(t *testing.T) {
	tests := []struct {
		intent string
		want   string
	}{
		{types.IntentExplanatory, "advanced"},
		{types.IntentComparison, "advanced"},
		{types.IntentHowTo, "advanced"},
		{types.IntentFactual, "advanced"},
		{types.IntentNews, "basic"},
		{"", "basic"},
	}
	for _, tt := range tests {
		payload := &types.QueryPayload{Intent: tt.intent}
		assert.Equal(t, tt.want, tavilySearchDepth(payload), "intent %q", tt.intent)
	}
	assert.Equal(t, "basic", tavilySearchDepth(nil))
}
