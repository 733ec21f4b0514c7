package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key (client address, producer id).
// Buckets idle for longer than the eviction age are dropped on Sweep.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity int
	refill   rate.Limit
	now      func() time.Time
}

// Option configures Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing bursts of capacity and refillPerSec tokens per second.
// A non-positive capacity disables limiting.
func New(capacity int, refillPerSec float64, opts ...Option) *Limiter {
	l := &Limiter{
		m:        make(map[string]*bucket),
		capacity: capacity,
		refill:   rate.Limit(refillPerSec),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	if l.capacity <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.refill, l.capacity)}
		l.m[key] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// Sweep forgets buckets idle for longer than maxIdle and returns how many were dropped.
func (l *Limiter) Sweep(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for k, b := range l.m {
		if b.seen.Before(cutoff) {
			delete(l.m, k)
			dropped++
		}
	}
	return dropped
}
