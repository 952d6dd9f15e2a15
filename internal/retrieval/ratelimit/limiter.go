// Package ratelimit provides per-provider sliding-window admission control
// with exponential backoff on repeated or rate-limit-class errors.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/websearch/types"
)

// Config bounds request admission for one provider.
type Config struct {
	PerMinute int `mapstructure:"per_minute" yaml:"per_minute"`
	PerHour   int `mapstructure:"per_hour" yaml:"per_hour"`

	// Window durations are configurable so tests can compress time.
	MinuteWindow time.Duration `mapstructure:"minute_window" yaml:"minute_window"`
	HourWindow   time.Duration `mapstructure:"hour_window" yaml:"hour_window"`

	BackoffBase time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max" yaml:"backoff_max"`
}

// DefaultConfig returns the fallback limits for providers without an
// explicit configuration.
func DefaultConfig() Config {
	return Config{
		PerMinute:    60,
		PerHour:      1000,
		MinuteWindow: time.Minute,
		HourWindow:   time.Hour,
		BackoffBase:  time.Second,
		BackoffMax:   60 * time.Second,
	}
}

// DefaultProviderConfigs returns the reference per-provider limits, tuned
// to the published quotas of the built-in providers.
func DefaultProviderConfigs() map[types.ProviderID]Config {
	return map[types.ProviderID]Config{
		types.ProviderSerper: {PerMinute: 50, PerHour: 1000},
		types.ProviderTavily: {PerMinute: 30, PerHour: 500},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PerMinute <= 0 {
		c.PerMinute = d.PerMinute
	}
	if c.PerHour <= 0 {
		c.PerHour = d.PerHour
	}
	if c.MinuteWindow <= 0 {
		c.MinuteWindow = d.MinuteWindow
	}
	if c.HourWindow <= 0 {
		c.HourWindow = d.HourWindow
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	return c
}

// errorThreshold is the consecutive-error count that triggers backoff for
// generic (non-rate-limit) failures.
const errorThreshold = 3

// waitMargin is added when sleeping until the oldest window entry ages out.
const waitMargin = 100 * time.Millisecond

// state is the mutable accounting for one provider. All mutation happens
// under its mutex so concurrent callers never corrupt window accounting.
type state struct {
	mu sync.Mutex

	minute []time.Time
	hour   []time.Time

	backoffUntil      time.Time
	consecutiveErrors int
}

// Limiter admits requests per provider under independent minute/hour
// sliding windows.
type Limiter struct {
	mu      sync.Mutex
	states  map[types.ProviderID]*state
	configs map[types.ProviderID]Config
	def     Config
	logger  *logger.Logger

	now func() time.Time
}

// New creates a limiter. configs maps provider ids to their limits; any
// provider not present uses def.
func New(def Config, configs map[types.ProviderID]Config, log *logger.Logger) *Limiter {
	if log == nil {
		log = logger.L()
	}
	normalized := make(map[types.ProviderID]Config, len(configs))
	for id, cfg := range configs {
		normalized[id] = cfg.withDefaults()
	}
	return &Limiter{
		states:  make(map[types.ProviderID]*state),
		configs: normalized,
		def:     def.withDefaults(),
		logger:  log.Named("ratelimit"),
		now:     time.Now,
	}
}

func (l *Limiter) configFor(provider types.ProviderID) Config {
	if cfg, ok := l.configs[provider]; ok {
		return cfg
	}
	return l.def
}

func (l *Limiter) stateFor(provider types.ProviderID) *state {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.states[provider]
	if !ok {
		s = &state{}
		l.states[provider] = s
	}
	return s
}

func evict(entries []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	return kept
}

func oldest(entries []time.Time) time.Time {
	min := entries[0]
	for _, ts := range entries[1:] {
		if ts.Before(min) {
			min = ts
		}
	}
	return min
}

// WaitIfNeeded blocks until the provider may issue a request, then records
// the request in both windows. Returns the total time spent waiting. The
// context aborts the wait early; on context error nothing is recorded.
func (l *Limiter) WaitIfNeeded(ctx context.Context, provider types.ProviderID) (time.Duration, error) {
	cfg := l.configFor(provider)
	s := l.stateFor(provider)

	s.mu.Lock()
	defer s.mu.Unlock()

	var waited time.Duration
	now := l.now()

	if now.Before(s.backoffUntil) {
		d := s.backoffUntil.Sub(now)
		l.logger.Debug("backing off",
			zap.String("provider", string(provider)),
			zap.Duration("wait", d),
		)
		if err := sleepCtx(ctx, d); err != nil {
			return waited, err
		}
		waited += d
		now = l.now()
	}

	s.minute = evict(s.minute, now, cfg.MinuteWindow)
	s.hour = evict(s.hour, now, cfg.HourWindow)

	if len(s.minute) >= cfg.PerMinute {
		d := cfg.MinuteWindow - now.Sub(oldest(s.minute)) + waitMargin
		if d > 0 {
			l.logger.Debug("minute window full",
				zap.String("provider", string(provider)),
				zap.Duration("wait", d),
			)
			if err := sleepCtx(ctx, d); err != nil {
				return waited, err
			}
			waited += d
			now = l.now()
			s.minute = evict(s.minute, now, cfg.MinuteWindow)
			s.hour = evict(s.hour, now, cfg.HourWindow)
		}
	}

	if len(s.hour) >= cfg.PerHour {
		d := cfg.HourWindow - now.Sub(oldest(s.hour)) + waitMargin
		if d > 0 {
			l.logger.Warn("hour window full",
				zap.String("provider", string(provider)),
				zap.Duration("wait", d),
			)
			if err := sleepCtx(ctx, d); err != nil {
				return waited, err
			}
			waited += d
			now = l.now()
			s.minute = evict(s.minute, now, cfg.MinuteWindow)
			s.hour = evict(s.hour, now, cfg.HourWindow)
		}
	}

	s.minute = append(s.minute, now)
	s.hour = append(s.hour, now)
	return waited, nil
}

// RecordSuccess clears the provider's error streak and any backoff.
func (l *Limiter) RecordSuccess(provider types.ProviderID) {
	s := l.stateFor(provider)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors = 0
	s.backoffUntil = time.Time{}
}

// RecordError notes a failed request. Rate-limit-class errors escalate
// backoff immediately; generic errors only after errorThreshold in a row.
func (l *Limiter) RecordError(provider types.ProviderID, isRateLimit bool) {
	cfg := l.configFor(provider)
	s := l.stateFor(provider)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.consecutiveErrors++
	if !isRateLimit && s.consecutiveErrors < errorThreshold {
		return
	}

	backoff := cfg.BackoffBase << uint(s.consecutiveErrors)
	if backoff > cfg.BackoffMax || backoff <= 0 {
		backoff = cfg.BackoffMax
	}
	s.backoffUntil = l.now().Add(backoff)

	l.logger.Warn("provider backing off",
		zap.String("provider", string(provider)),
		zap.Bool("rate_limit", isRateLimit),
		zap.Int("consecutive_errors", s.consecutiveErrors),
		zap.Duration("backoff", backoff),
	)
}

// BackoffUntil returns the provider's current backoff deadline, zero when
// none is active.
func (l *Limiter) BackoffUntil(provider types.ProviderID) time.Time {
	s := l.stateFor(provider)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoffUntil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
