package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing API calls and computes retry delays.
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Reserve() time.Duration
	RetryAfter(attempt int) time.Duration
	Reset()
}

// Strategy defines the rate limiting strategy.
type Strategy string

const (
	// StrategyTokenBucket allows bursts of Burst requests at RequestsPerSec.
	StrategyTokenBucket Strategy = "token_bucket"
	// StrategyFixedDelay spaces every request FixedDelay apart.
	StrategyFixedDelay Strategy = "fixed_delay"
)

// NewLimiter creates a rate limiter based on config.
func NewLimiter(cfg Config) Limiter {
	cfg = ApplyDefaults(cfg)
	return &limiter{cfg: cfg, rl: newRate(cfg)}
}

type limiter struct {
	cfg Config

	mu sync.Mutex
	rl *rate.Limiter
}

func newRate(cfg Config) *rate.Limiter {
	if cfg.Strategy == StrategyFixedDelay {
		return rate.NewLimiter(rate.Every(cfg.FixedDelay), 1)
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst)
}

func (l *limiter) current() *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rl
}

// Wait blocks until a request may proceed or ctx is done.
func (l *limiter) Wait(ctx context.Context) error {
	return l.current().Wait(ctx)
}

// Allow reports whether a request may proceed now and consumes a token if so.
func (l *limiter) Allow() bool {
	return l.current().Allow()
}

// Reserve returns how long the next request would have to wait. The
// reservation is handed back, so no token is consumed.
func (l *limiter) Reserve() time.Duration {
	r := l.current().Reserve()
	defer r.Cancel()
	return r.Delay()
}

// RetryAfter returns the exponential backoff for a failed attempt.
func (l *limiter) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, l.cfg)
}

// Reset restores the full burst.
func (l *limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rl = newRate(l.cfg)
}
