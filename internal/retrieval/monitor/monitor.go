// Package monitor collects per-call search metrics with a bounded history
// and computes aggregate statistics, overall or per provider.
package monitor

import (
	"sync"
	"time"
)

// maxHistory bounds the retained call records; older ones are discarded.
const maxHistory = 1000

// Call is one provider search attempt.
type Call struct {
	Query       string
	Provider    string
	StartedAt   time.Time
	Duration    time.Duration
	Success     bool
	ResultCount int
	CacheHit    bool
	Err         string
}

// Stats aggregates call records.
type Stats struct {
	TotalSearches      int
	SuccessfulSearches int
	FailedSearches     int
	CacheHits          int
	TotalDuration      time.Duration
	AvgDuration        time.Duration
	MinDuration        time.Duration
	MaxDuration        time.Duration
	TotalResults       int
	AvgResultsPerCall  float64
}

// Monitor records search calls. Safe for concurrent use.
type Monitor struct {
	mu    sync.Mutex
	calls []Call
	now   func() time.Time
}

// New creates a Monitor.
func New() *Monitor {
	return &Monitor{now: time.Now}
}

// Metric is one in-flight call measurement. Finish it with exactly one of
// Monitor.RecordSuccess or Monitor.RecordError.
type Metric struct {
	query     string
	provider  string
	startedAt time.Time
}

// Start begins measuring one provider call.
func (m *Monitor) Start(query, provider string) *Metric {
	return &Metric{query: query, provider: provider, startedAt: m.now()}
}

// RecordSuccess finishes a metric as successful.
func (m *Monitor) RecordSuccess(metric *Metric, resultCount int, cacheHit bool) {
	m.append(Call{
		Query:       metric.query,
		Provider:    metric.provider,
		StartedAt:   metric.startedAt,
		Duration:    m.now().Sub(metric.startedAt),
		Success:     true,
		ResultCount: resultCount,
		CacheHit:    cacheHit,
	})
}

// RecordError finishes a metric as failed.
func (m *Monitor) RecordError(metric *Metric, errMsg string) {
	m.append(Call{
		Query:     metric.query,
		Provider:  metric.provider,
		StartedAt: metric.startedAt,
		Duration:  m.now().Sub(metric.startedAt),
		Err:       errMsg,
	})
}

func (m *Monitor) append(call Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if len(m.calls) > maxHistory {
		m.calls = m.calls[len(m.calls)-maxHistory:]
	}
}

// Stats aggregates all recorded calls.
func (m *Monitor) Stats() Stats {
	return m.stats("")
}

// ProviderStats aggregates the calls of one provider.
func (m *Monitor) ProviderStats(provider string) Stats {
	return m.stats(provider)
}

func (m *Monitor) stats(provider string) Stats {
	m.mu.Lock()
	calls := make([]Call, 0, len(m.calls))
	for _, c := range m.calls {
		if provider == "" || c.Provider == provider {
			calls = append(calls, c)
		}
	}
	m.mu.Unlock()

	if len(calls) == 0 {
		return Stats{}
	}

	s := Stats{TotalSearches: len(calls), MinDuration: calls[0].Duration}
	for _, c := range calls {
		s.TotalDuration += c.Duration
		if c.Duration < s.MinDuration {
			s.MinDuration = c.Duration
		}
		if c.Duration > s.MaxDuration {
			s.MaxDuration = c.Duration
		}
		if c.CacheHit {
			s.CacheHits++
		}
		if c.Success {
			s.SuccessfulSearches++
			s.TotalResults += c.ResultCount
		} else {
			s.FailedSearches++
		}
	}
	s.AvgDuration = s.TotalDuration / time.Duration(len(calls))
	if s.SuccessfulSearches > 0 {
		s.AvgResultsPerCall = float64(s.TotalResults) / float64(s.SuccessfulSearches)
	}
	return s
}
