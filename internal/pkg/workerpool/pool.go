package workerpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Statistics tracks submitted/completed/failed task counts.
type Statistics struct {
	mu sync.Mutex

	Submitted int64
	Completed int64
	Failed    int64
}

func (s *Statistics) incSubmitted() {
	s.mu.Lock()
	s.Submitted++
	s.mu.Unlock()
}

func (s *Statistics) incCompleted() {
	s.mu.Lock()
	s.Completed++
	s.mu.Unlock()
}

func (s *Statistics) incFailed() {
	s.mu.Lock()
	s.Failed++
	s.mu.Unlock()
}

// Get returns a snapshot of the counters.
func (s *Statistics) Get() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{
		Submitted: s.Submitted,
		Completed: s.Completed,
		Failed:    s.Failed,
	}
}

// Pool is a bounded worker pool backed by ants. Tasks run to completion
// independently; a panicking task is recovered and counted as failed.
type Pool struct {
	pool   *ants.Pool
	stats  *Statistics
	logger *logger.Logger

	closed sync.Once
}

// New creates a worker pool with the given size.
func New(size int, log *logger.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size: %d", size)
	}
	if log == nil {
		log = logger.L()
	}

	stats := &Statistics{}

	antsPool, err := ants.NewPool(size,
		ants.WithPanicHandler(func(r interface{}) {
			stats.incFailed()
			log.Error("worker panic", zap.Any("panic", r))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{
		pool:   antsPool,
		stats:  stats,
		logger: log,
	}, nil
}

// Submit schedules a task, blocking when all workers are busy.
func (p *Pool) Submit(task func()) error {
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}

	p.stats.incSubmitted()
	err := p.pool.Submit(func() {
		task()
		p.stats.incCompleted()
	})
	if err != nil {
		p.stats.incFailed()
		return fmt.Errorf("submit task: %w", err)
	}
	return nil
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Cap returns the pool capacity.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Stats returns a snapshot of the task counters.
func (p *Pool) Stats() Statistics {
	return p.stats.Get()
}

// Shutdown releases the pool. Idempotent.
func (p *Pool) Shutdown() {
	p.closed.Do(func() {
		p.pool.Release()
	})
}
