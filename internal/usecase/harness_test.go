package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/repository"
	"SpinPull/internal/service/cache"
	"SpinPull/internal/service/lock"
	"SpinPull/internal/services/predictor"
	"SpinPull/pkg/metrics"
	"SpinPull/pkg/store"
	"SpinPull/pkg/util"
)

type recordingPublisher struct {
	mu          sync.Mutex
	spins       []*models.SpinOutcome
	predictions []*models.Prediction
	err         error
}

func (p *recordingPublisher) PublishSpin(_ context.Context, o *models.SpinOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spins = append(p.spins, o)
	return p.err
}

func (p *recordingPublisher) PublishPrediction(_ context.Context, pred *models.Prediction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.predictions = append(p.predictions, pred)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) Broadcast(event string, _ interface{}) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

type harness struct {
	clock *util.FakeClock
	store store.Store
	repo  *repository.StateRepository
	ing   *Ingester
	reg   *Registry
	orch  *Orchestrator
	query *QueryService
	pub   *recordingPublisher
	hub   *recordingHub
}

func newHarnessWithStore(t *testing.T, st store.Store, clock *util.FakeClock) *harness {
	t.Helper()
	repo := repository.NewStateRepository(st)
	rec := metrics.NewWithRegisterer(prometheus.NewRegistry())
	ing := NewIngester(repo, clock, IngestConfig{})
	reg := NewRegistry(repo, clock, rec, RegistryConfig{})
	c := cache.NewTTLCache(clock)
	orch := NewOrchestrator(ing, reg, repo,
		predictor.NewHeuristic(predictor.WithSeed(42)),
		lock.NewWriterLock(lock.Config{Wait: 5 * time.Second}, nil),
		c, rec, OrchestratorConfig{})
	pub := &recordingPublisher{}
	hub := &recordingHub{}
	orch.SetPublisher(pub)
	orch.SetBroadcaster(hub)
	return &harness{
		clock: clock,
		store: st,
		repo:  repo,
		ing:   ing,
		reg:   reg,
		orch:  orch,
		query: NewQueryService(repo, reg, c, time.Minute),
		pub:   pub,
		hub:   hub,
	}
}

func at(ts int64) *int64 { return &ts }

func newHarness(t *testing.T) *harness {
	clock := util.NewFakeClock(time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore(store.WithMemoryCleanup(0), store.WithMemoryClock(clock.Now))
	return newHarnessWithStore(t, st, clock)
}

func (h *harness) ingest(t *testing.T, ts int64, ns ...int) {
	t.Helper()
	for i, n := range ns {
		_, err := h.ing.Ingest(context.Background(), n, ts+int64(i))
		require.NoError(t, err)
	}
}

func (h *harness) counters(t *testing.T) models.Counters {
	t.Helper()
	c, err := h.repo.Counters(context.Background())
	require.NoError(t, err)
	return c
}

func (h *harness) gameStats(t *testing.T) models.GameStats {
	t.Helper()
	gs, err := h.repo.GameStats(context.Background())
	require.NoError(t, err)
	return gs
}

// groupsWith builds valid groups whose group_6 is g6 and that never contain excluded.
func groupsWith(g6 []int, excluded int) models.Groups {
	pool := append([]int(nil), g6...)
	in := make(map[int]bool)
	for _, n := range g6 {
		in[n] = true
	}
	for n := 0; n <= 36 && len(pool) < 20; n++ {
		if !in[n] && n != excluded {
			pool = append(pool, n)
			in[n] = true
		}
	}
	take := func(k int) []int { return append([]int(nil), pool[:k]...) }
	return models.Groups{
		G20: take(20), G15: take(15), G12: take(12), G9: take(9), G6: take(6),
		G4: append([]int(nil), g6[:4]...),
	}
}
