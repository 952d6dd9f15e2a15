package types

import (
	"net/url"
	"strings"
)

// SearchResult is a single hit returned by a provider. Position is 1-based
// and re-assigned at every stage (raw provider rank, merge, final ranking).
type SearchResult struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet,omitempty"`
	SourceAPI     string `json:"source_api"`
	Position      int    `json:"position"`
	Domain        string `json:"domain,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
}

// NormalizedURL returns the dedup identity key: lowercased, trimmed URL.
func (r *SearchResult) NormalizedURL() string {
	return strings.ToLower(strings.TrimSpace(r.URL))
}

// DomainKey returns the lowercased domain for diversity/credibility grouping,
// falling back to the URL host and finally the normalized URL itself.
func (r *SearchResult) DomainKey() string {
	if d := strings.ToLower(strings.TrimSpace(r.Domain)); d != "" {
		return d
	}
	if u, err := url.Parse(r.URL); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return r.NormalizedURL()
}

// HostOf extracts the host part of a raw URL, empty if unparsable.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
