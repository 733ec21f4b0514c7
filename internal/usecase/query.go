package usecase

import (
	"context"
	"time"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
	"SpinPull/internal/repository"
	"SpinPull/internal/service/cache"
	"SpinPull/internal/services/analytics"
)

const (
	cacheKeyRouletteStats = "stats:roulette"
	cacheKeyAIStats       = "stats:ai"

	historyReadCap = 200
)

// QueryService serves the read-only views. It never takes the writer lock.
type QueryService struct {
	repo     *repository.StateRepository
	registry *Registry
	cache    *cache.TTLCache
	statsTTL time.Duration
}

func NewQueryService(repo *repository.StateRepository, registry *Registry, c *cache.TTLCache, statsTTL time.Duration) *QueryService {
	return &QueryService{repo: repo, registry: registry, cache: c, statsTTL: statsTTL}
}

// Numbers returns up to limit spins, newest first, skipping offset. Each
// spin carries the timestamp it was ingested with while its timeline
// entry is retained; older spins come back without one.
func (q *QueryService) Numbers(ctx context.Context, offset, limit int) ([]models.Spin, int64, error) {
	offset = max(offset, 0)
	limit = min(max(limit, 1), historyReadCap)
	seq, err := q.repo.TotalSpins(ctx)
	if err != nil {
		return nil, 0, err
	}
	hist, err := q.repo.History(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := q.repo.HistoryLen(ctx)
	if err != nil {
		return nil, 0, err
	}
	timeline, err := q.repo.TimelineBySeq(ctx)
	if err != nil {
		return nil, 0, err
	}
	seq -= int64(offset)
	out := make([]models.Spin, 0, len(hist))
	for i, n := range hist {
		var ts int64
		// a spin landing between the reads shifts the pairing; drop the stamp then
		if e, ok := timeline[seq-int64(i)]; ok && e.Number == n {
			ts = e.Timestamp
		}
		out = append(out, models.NewSpin(n, ts))
	}
	return out, total, nil
}

// Latest returns the most recent spin, stamped with the session's last
// update, or ErrNotFound before the first ingest.
func (q *QueryService) Latest(ctx context.Context) (*models.Spin, error) {
	n, err := q.repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, models.ErrNotFound
	}
	var ts int64
	if s, err := q.repo.CurrentSession(ctx); err == nil && s != nil {
		ts = s.LastUpdate
	}
	spin := models.NewSpin(*n, ts)
	return &spin, nil
}

// Stats returns the aggregate counters and derived splits. The result is
// cached until the next spin or the TTL, whichever comes first.
func (q *QueryService) Stats(ctx context.Context) (*models.RouletteStats, error) {
	return cache.GetOrLoad(q.cache, cacheKeyRouletteStats, q.statsTTL, func() (*models.RouletteStats, error) {
		return q.loadStats(ctx)
	})
}

func (q *QueryService) loadStats(ctx context.Context) (*models.RouletteStats, error) {
	counters, err := q.repo.Counters(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := q.repo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	rolling, err := q.repo.RollingWindows(ctx)
	if err != nil {
		return nil, err
	}
	hist, err := q.repo.History(ctx, 0, historyReadCap)
	if err != nil {
		return nil, err
	}
	session, err := q.repo.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	pct := make(map[string]float64, len(wheel.Colors))
	var colored int64
	for _, c := range wheel.Colors {
		colored += counters.Colors[c]
	}
	for _, c := range wheel.Colors {
		if colored > 0 {
			pct[string(c)] = float64(counters.Colors[c]) * 100 / float64(colored)
		} else {
			pct[string(c)] = 0
		}
	}
	return &models.RouletteStats{
		Counters:         counters,
		Latest:           latest,
		ColorPercentages: pct,
		Rolling:          rolling,
		Detailed:         analytics.DetailedStats(hist),
		Session:          session,
	}, nil
}

// AIStats returns prediction performance, cached like Stats.
func (q *QueryService) AIStats(ctx context.Context) (*models.AIStats, error) {
	return cache.GetOrLoad(q.cache, cacheKeyAIStats, q.statsTTL, func() (*models.AIStats, error) {
		return q.registry.Stats(ctx)
	})
}

// Analytics returns every pattern query over the current state.
func (q *QueryService) Analytics(ctx context.Context) (*models.PatternReport, error) {
	snap, err := q.repo.Snapshot(ctx, historyReadCap, 50)
	if err != nil {
		return nil, err
	}
	rolling, err := q.repo.RollingWindows(ctx)
	if err != nil {
		return nil, err
	}
	rep := analytics.Report(snap, rolling)
	return &rep, nil
}

// Features returns up to limit feature records, newest first.
func (q *QueryService) Features(ctx context.Context, limit int) ([]models.FeatureRecord, error) {
	return q.repo.FeatureHistory(ctx, min(max(limit, 1), 500))
}

// Status reports store reachability and key counts.
func (q *QueryService) Status(ctx context.Context) models.StoreStatus {
	return q.repo.Status(ctx)
}

// Ping checks the store for the health endpoint.
func (q *QueryService) Ping(ctx context.Context) error {
	return q.repo.Ping(ctx)
}

// Pending returns the pending predictions, newest first.
func (q *QueryService) Pending(ctx context.Context) ([]*models.Prediction, error) {
	return q.registry.Pending(ctx)
}

func (q *QueryService) Prediction(ctx context.Context, id string) (*models.Prediction, error) {
	return q.registry.Get(ctx, id)
}

func (q *QueryService) Result(ctx context.Context, id string) (*models.VerificationResult, error) {
	return q.registry.Result(ctx, id)
}
