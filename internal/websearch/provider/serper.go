package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/searchlab/retrieval/internal/websearch/types"
)

// serperMaxResults is the API's per-call ceiling.
const serperMaxResults = 100

// SerperProvider implements the Serper Google-search API.
type SerperProvider struct {
	*BaseProvider
}

// NewSerperProvider creates a new Serper provider.
func NewSerperProvider(config *types.ProviderConfig) (Provider, error) {
	return &SerperProvider{BaseProvider: NewBaseProvider(config)}, nil
}

type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
	GL    string `json:"gl,omitempty"`
	TBS   string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// Search executes a search query against the Serper API.
func (p *SerperProvider) Search(ctx context.Context, query string, payload *types.QueryPayload) ([]types.SearchResult, error) {
	if query == "" {
		return nil, types.ErrEmptyQuery
	}

	serperReq := serperRequest{
		Query: query,
		Num:   p.MaxResults(payload, serperMaxResults),
	}
	if payload != nil {
		if lang := payload.Constraints.Language; lang != "" && lang != "en" {
			serperReq.GL = lang
		}
		if payload.TimeSensitivity.IsTimeSensitive {
			// Restrict to the past month for time-sensitive queries.
			serperReq.TBS = "qdr:m"
		}
	}

	body, err := json.Marshal(serperReq)
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
	httpReq.Header.Set("X-API-KEY", p.APIKey())

	resp, err := p.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var serperResp serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&serperResp); err != nil {
		return nil, &types.ProviderError{
			Provider: p.ID(),
			Code:     "DECODE_FAILED",
			Message:  "failed to decode response",
			Err:      err,
		}
	}

	results := make([]types.SearchResult, 0, len(serperResp.Organic))
	for i, item := range serperResp.Organic {
		results = append(results, types.SearchResult{
			URL:           item.Link,
			Title:         item.Title,
			Snippet:       item.Snippet,
			SourceAPI:     string(p.ID()),
			Position:      i + 1,
			Domain:        types.HostOf(item.Link),
			PublishedDate: item.Date,
		})
	}
	return results, nil
}
