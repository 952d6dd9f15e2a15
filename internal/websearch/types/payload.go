package types

// Intent tags produced by the upstream query-understanding stage.
const (
	IntentFactual     = "factual"
	IntentExplanatory = "explanatory"
	IntentComparison  = "comparison"
	IntentHowTo       = "how_to"
	IntentNews        = "news"
)

// Entity is a named entity recognized in the original query.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TimeSensitivity describes whether the query cares about recent content.
type TimeSensitivity struct {
	IsTimeSensitive bool   `json:"is_time_sensitive"`
	DateRange       string `json:"date_range,omitempty"`
}

// SearchConstraints bound what providers are asked for.
type SearchConstraints struct {
	SourceTypes        []string `json:"source_types,omitempty"`
	MaxResultsPerQuery int      `json:"max_results_per_query"`
	Language           string   `json:"language,omitempty"`
}

// QueryPayload is the structured input produced by query understanding.
// It is treated as immutable by the retrieval core.
type QueryPayload struct {
	OriginalQuery   string            `json:"original_query"`
	Intent          string            `json:"intent,omitempty"`
	Entities        []Entity          `json:"entities,omitempty"`
	TimeSensitivity TimeSensitivity   `json:"time_sensitivity"`
	Subqueries      []string          `json:"subqueries,omitempty"`
	SearchVariants  []string          `json:"search_variants,omitempty"`
	Constraints     SearchConstraints `json:"constraints"`
}

// WantsNews reports whether the payload asks for news-flavored results,
// either via intent or an explicit source type.
func (p *QueryPayload) WantsNews() bool {
	if p.Intent == IntentNews {
		return true
	}
	for _, st := range p.Constraints.SourceTypes {
		if st == "news" {
			return true
		}
	}
	return false
}
