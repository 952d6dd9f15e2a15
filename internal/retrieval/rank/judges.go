package rank

import "context"

// Candidate is the (title, truncated snippet) pair shown to the relevance
// judge, in batch order.
type Candidate struct {
	Title   string
	Snippet string
}

// RelevanceJudge decides which results in one batch are topically relevant
// to the query. It returns 1-based indices into the batch; any index not
// returned is considered irrelevant. A non-nil error means the call failed
// and the caller fails open, keeping the whole batch.
type RelevanceJudge interface {
	Relevant(ctx context.Context, query string, batch []Candidate) ([]int, error)
}

// CredibilityJudge scores domains for trustworthiness on a 0-10 scale.
// Domains absent from the returned map are unknown to the judge. A non-nil
// error means the call failed and the caller fails soft: nothing is
// dropped and no score is asserted.
type CredibilityJudge interface {
	ScoreDomains(ctx context.Context, domains []string) (map[string]float64, error)
}
