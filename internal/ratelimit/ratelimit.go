// Package ratelimit provides a process-local, per-vendor token bucket. It is
// safe under concurrent goroutines and suspends callers cooperatively instead
// of spinning (spec.md §4.1).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures one vendor's bucket.
type Config struct {
	MaxRequests int
	WindowMs    int
}

// limiterFor derives the refill rate from WindowMs/MaxRequests and the burst
// from MaxRequests, mirroring spec.md's "refill rate is windowMs/maxRequests".
func (c Config) limiterFor() *rate.Limiter {
	if c.MaxRequests <= 0 {
		c.MaxRequests = 1
	}
	if c.WindowMs <= 0 {
		c.WindowMs = 1000
	}
	interval := time.Duration(c.WindowMs) * time.Millisecond / time.Duration(c.MaxRequests)
	return rate.NewLimiter(rate.Every(interval), c.MaxRequests)
}

// Limiter is a single vendor's token bucket.
type Limiter struct {
	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter
}

// New builds a Limiter from a config.
func New(cfg Config) *Limiter {
	return &Limiter{cfg: cfg, limiter: cfg.limiterFor()}
}

// Acquire blocks until a token is available or ctx is cancelled. Suspension
// is cooperative: it parks on ctx/timer, never busy-polls.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.RLock()
	lim := l.limiter
	l.mu.RUnlock()
	return lim.Wait(ctx)
}

// Allow reports, without blocking, whether a token is currently available.
func (l *Limiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Allow()
}

// Reset replaces the underlying bucket, discarding accumulated tokens.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = l.cfg.limiterFor()
}

// Registry is the process-wide, read-mostly set of per-vendor limiters
// (spec.md §5's "two acceptable singletons"). It is safe for concurrent use
// and append-only after Configure calls made during startup wiring.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// Configure installs (or replaces) the limiter for a vendor tag. Intended to
// be called once per vendor during process startup.
func (r *Registry) Configure(vendor string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[vendor] = New(cfg)
}

// For returns the limiter for a vendor tag, lazily installing a permissive
// default bucket if none was configured (keeps unit tests that skip explicit
// configuration from deadlocking).
func (r *Registry) For(vendor string) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[vendor]
	r.mu.RUnlock()
	if ok {
		return l
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok = r.limiters[vendor]; ok {
		return l
	}
	l = New(Config{MaxRequests: 100, WindowMs: 1000})
	r.limiters[vendor] = l
	return l
}
