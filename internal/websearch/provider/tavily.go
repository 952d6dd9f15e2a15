package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

// tavilyMaxResults is the API's per-call ceiling.
const tavilyMaxResults = 20

// TavilyProvider implements the Tavily search API.
type TavilyProvider struct {
	*BaseProvider
}

// NewTavilyProvider creates a new Tavily provider.
func NewTavilyProvider(config *types.ProviderConfig) (Provider, error) {
	return &TavilyProvider{BaseProvider: NewBaseProvider(config)}, nil
}

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	Topic         string `json:"topic,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeAnswer bool   `json:"include_answer,omitempty"`
	TimeRange     string `json:"time_range,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Content       string `json:"content"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
}

// tavilySearchDepth picks "advanced" for intents where Tavily's deeper pass
// returns noticeably more on-topic results.
func tavilySearchDepth(payload *types.QueryPayload) string {
	if payload == nil {
		return "basic"
	}
	switch payload.Intent {
	case types.IntentExplanatory, types.IntentComparison, types.IntentHowTo, types.IntentFactual:
		return "advanced"
	}
	return "basic"
}

// Search executes a search query against the Tavily API.
func (p *TavilyProvider) Search(ctx context.Context, query string, payload *types.QueryPayload) ([]types.SearchResult, error) {
	if query == "" {
		return nil, types.ErrEmptyQuery
	}

	tavilyReq := tavilyRequest{
		Query:         query,
		SearchDepth:   tavilySearchDepth(payload),
		Topic:         "general",
		MaxResults:    p.MaxResults(payload, tavilyMaxResults),
		IncludeAnswer: true,
	}
	if payload != nil {
		if payload.WantsNews() {
			tavilyReq.Topic = "news"
		}
		if payload.TimeSensitivity.IsTimeSensitive {
			tavilyReq.TimeRange = "month"
		}
	}

	body, err := json.Marshal(tavilyReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/search", p.Config().APIHost)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range defaultHeaders() {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.APIKey()))

	resp, err := p.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tavilyResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, &types.ProviderError{
			Provider: p.ID(),
			Code:     "DECODE_FAILED",
			Message:  "failed to decode response",
			Err:      err,
		}
	}

	results := make([]types.SearchResult, 0, len(tavilyResp.Results))
	for i, item := range tavilyResp.Results {
		results = append(results, types.SearchResult{
			URL:           item.URL,
			Title:         item.Title,
			Snippet:       item.Content,
			SourceAPI:     string(p.ID()),
			Position:      i + 1,
			Domain:        types.HostOf(item.URL),
			PublishedDate: item.PublishedDate,
		})
	}
	return results, nil
}
