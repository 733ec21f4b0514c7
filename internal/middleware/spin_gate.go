package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	"SpinPull/internal/domain/wheel"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/util"
)

// Proc is the minimal processor interface the gate needs.
type Proc interface {
	ProcessSpin(ctx context.Context, n int, ts *int64) (*models.SpinOutcome, error)
}

type spinKey struct {
	n  int
	ts int64
}

// SpinGate sits between the bus consumers and the orchestrator. It validates,
// drops repeats of the same (n, ts) within the dedup window and throttles
// the accepted rate.
type SpinGate struct {
	proc    Proc
	metrics domrepo.Metrics
	clock   util.Clock
	l       *applogger.Logger

	window  time.Duration
	limiter *rate.Limiter

	mu       sync.Mutex
	seen     map[spinKey]time.Time
	inflight map[spinKey]struct{}
	lastGC   time.Time
}

type GateOption func(*SpinGate)

// WithMaxRPS bounds the rate of spins passed downstream. Non-positive disables throttling.
func WithMaxRPS(rps float64) GateOption {
	return func(g *SpinGate) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		} else {
			g.limiter = nil
		}
	}
}

// WithDedupWindow sets how long an accepted (n, ts) pair is remembered.
func WithDedupWindow(d time.Duration) GateOption {
	return func(g *SpinGate) { g.window = d }
}

func WithGateClock(c util.Clock) GateOption {
	return func(g *SpinGate) {
		if c != nil {
			g.clock = c
		}
	}
}

func WithGateLogger(l *applogger.Logger) GateOption {
	return func(g *SpinGate) { g.l = l }
}

// NewSpinGate creates a gate in front of proc.
func NewSpinGate(proc Proc, metrics domrepo.Metrics, opts ...GateOption) *SpinGate {
	g := &SpinGate{
		proc:     proc,
		metrics:  metrics,
		clock:    util.SystemClock(),
		window:   10 * time.Minute,
		limiter:  rate.NewLimiter(20, 20),
		seen:     make(map[spinKey]time.Time),
		inflight: make(map[spinKey]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit forwards spin n observed at ts downstream unless it is a repeat.
// A nil ts is stamped with the gate clock; 0 is a real timestamp.
func (g *SpinGate) Submit(ctx context.Context, n int, raw *int64) error {
	if !wheel.Valid(n) {
		g.recordError("gate_validate")
		return models.NewValidationError("number", "must be between 0 and 36, got %d", n)
	}
	now := g.clock.Now()
	ts := now.Unix()
	if raw != nil {
		if *raw < 0 {
			g.recordError("gate_validate")
			return models.NewValidationError("timestamp", "must not be negative")
		}
		ts = util.NormalizeUnix(*raw)
	}
	key := spinKey{n: n, ts: ts}

	if !g.claim(key, now) {
		g.recordError("gate_duplicate")
		if g.l != nil {
			g.l.Debug("duplicate spin dropped", applogger.Int("number", n), applogger.Int64("ts", ts))
		}
		return nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.release(key, false, now)
			g.recordError("gate_throttle")
			return fmt.Errorf("gate throttle: %w", err)
		}
	}

	start := time.Now()
	if _, err := g.proc.ProcessSpin(ctx, n, &ts); err != nil {
		g.release(key, false, now)
		return fmt.Errorf("gate downstream: %w", err)
	}
	g.release(key, true, now)
	if g.metrics != nil {
		g.metrics.RecordLatency("gate_process", time.Since(start).Seconds())
	}
	return nil
}

// claim marks key in flight unless it is in flight or was accepted recently.
func (g *SpinGate) claim(key spinKey, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gcLocked(now)
	if _, busy := g.inflight[key]; busy {
		return false
	}
	if at, ok := g.seen[key]; ok && now.Sub(at) < g.window {
		return false
	}
	g.inflight[key] = struct{}{}
	return true
}

// release clears the in-flight mark; accepted keys are remembered for the
// dedup window so producer retries of a committed spin are dropped.
func (g *SpinGate) release(key spinKey, accepted bool, now time.Time) {
	g.mu.Lock()
	delete(g.inflight, key)
	if accepted && g.window > 0 {
		g.seen[key] = now
	}
	g.mu.Unlock()
}

func (g *SpinGate) gcLocked(now time.Time) {
	if now.Sub(g.lastGC) < g.window/2 {
		return
	}
	g.lastGC = now
	for k, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, k)
		}
	}
}

func (g *SpinGate) recordError(kind string) {
	if g.metrics != nil {
		g.metrics.RecordError(kind)
	}
}
