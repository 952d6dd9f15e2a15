// Package orchestrator fans optimized queries out across all configured
// providers in parallel and merges the raw results into one deduplicated,
// domain-diverse list.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/pkg/workerpool"
	"github.com/searchlab/retrieval/internal/websearch/provider"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// Defaults for the fan-out stage.
const (
	DefaultMaxWorkers         = 10
	DefaultTaskTimeout        = 15 * time.Second
	DefaultMaxResultsPerQuery = 10
)

// Config tunes the fan-out stage.
type Config struct {
	// MaxWorkers caps pool size; the pool never exceeds the task count.
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`
	// TaskTimeout bounds each provider call.
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
	// MaxResultsPerQuery scales the merged output ceiling
	// (MaxResultsPerQuery * len(queries)) when the payload constraint
	// does not set its own per-query limit.
	MaxResultsPerQuery int `mapstructure:"max_results_per_query" yaml:"max_results_per_query"`
}

// DefaultConfig returns the default fan-out settings.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:         DefaultMaxWorkers,
		TaskTimeout:        DefaultTaskTimeout,
		MaxResultsPerQuery: DefaultMaxResultsPerQuery,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.MaxResultsPerQuery <= 0 {
		c.MaxResultsPerQuery = d.MaxResultsPerQuery
	}
	return c
}

// Output is one merged search batch.
type Output struct {
	OriginalQuery string               `json:"original_query"`
	Results       []types.SearchResult `json:"results"`
	QueriesUsed   []string             `json:"queries_used"`
	TotalTasks    int                  `json:"total_tasks"`
}

type task struct {
	query    string
	provider provider.Provider
}

// Orchestrator runs query x provider search tasks concurrently.
type Orchestrator struct {
	cfg           Config
	providers     []provider.Provider
	authoritative types.ProviderID
	logger        *logger.Logger
}

// New creates an Orchestrator. authoritative names the provider whose copy
// of a duplicate URL wins merge tie-breaks. Providers are ordered by ID so
// task layout, and with it merge input order, is deterministic.
func New(cfg Config, providers []provider.Provider, authoritative types.ProviderID, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.L()
	}
	ordered := make([]provider.Provider, len(providers))
	copy(ordered, providers)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID() < ordered[j].ID() })

	return &Orchestrator{
		cfg:           cfg.withDefaults(),
		providers:     ordered,
		authoritative: authoritative,
		logger:        log.Named("orchestrator"),
	}
}

// Search fans the queries out to every provider, waits for all tasks, and
// merges. Provider failures surface as empty per-task result sets; the
// batch itself fails only when the pool cannot be built.
func (o *Orchestrator) Search(ctx context.Context, queries []string, payload *types.QueryPayload) (*Output, error) {
	originalQuery := ""
	if payload != nil {
		originalQuery = payload.OriginalQuery
	}
	out := &Output{OriginalQuery: originalQuery, QueriesUsed: queries}
	if len(queries) == 0 || len(o.providers) == 0 {
		return out, nil
	}

	tasks := make([]task, 0, len(queries)*len(o.providers))
	for _, q := range queries {
		for _, p := range o.providers {
			tasks = append(tasks, task{query: q, provider: p})
		}
	}
	out.TotalTasks = len(tasks)

	workers := o.cfg.MaxWorkers
	if len(tasks) < workers {
		workers = len(tasks)
	}
	pool, err := workerpool.New(workers, o.logger)
	if err != nil {
		return nil, err
	}
	defer pool.Shutdown()

	batchID := uuid.NewString()
	log := o.logger.With(zap.String("batch_id", batchID))
	log.Info("search batch started",
		zap.Int("queries", len(queries)),
		zap.Int("providers", len(o.providers)),
		zap.Int("tasks", len(tasks)),
	)
	started := time.Now()

	// Indexed by task so completion order cannot affect merge input order.
	allResults := make([][]types.SearchResult, len(tasks))
	var wg sync.WaitGroup
	for i, tk := range tasks {
		i, tk := i, tk
		wg.Add(1)
		run := func() {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, o.cfg.TaskTimeout)
			defer cancel()

			results, err := tk.provider.Search(taskCtx, tk.query, payload)
			if err != nil {
				log.Warn("search task failed",
					zap.String("query", tk.query),
					zap.String("provider", string(tk.provider.ID())),
					zap.Error(err),
				)
				return
			}
			allResults[i] = results
		}
		if err := pool.Submit(run); err != nil {
			wg.Done()
			log.Warn("search task submit failed",
				zap.String("query", tk.query),
				zap.String("provider", string(tk.provider.ID())),
				zap.Error(err),
			)
		}
	}
	wg.Wait()

	merged := mergeResults(allResults, originalQuery, o.authoritative)

	perQuery := o.cfg.MaxResultsPerQuery
	if payload != nil && payload.Constraints.MaxResultsPerQuery > 0 {
		perQuery = payload.Constraints.MaxResultsPerQuery
	}
	maxTotal := perQuery * len(queries)
	if len(merged) > maxTotal {
		merged = merged[:maxTotal]
	}
	out.Results = merged

	log.Info("search batch finished",
		zap.Int("merged_results", len(merged)),
		zap.Duration("took", time.Since(started)),
	)
	return out, nil
}
