package usecase

import (
	"context"
	"fmt"
	"time"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
	"SpinPull/internal/repository"
	"SpinPull/internal/services/features"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/util"
)

const (
	streakColorCap = 50
	gapCap         = 10
)

// IngestConfig bounds the ingestion lists.
type IngestConfig struct {
	HistoryCap        int64
	TimelineCap       int64
	FeatureHistoryCap int64
	CommitTimeout     time.Duration
}

func (c *IngestConfig) setDefaults() {
	if c.HistoryCap <= 0 {
		c.HistoryCap = 200
	}
	if c.TimelineCap <= 0 {
		c.TimelineCap = 200
	}
	if c.FeatureHistoryCap <= 0 {
		c.FeatureHistoryCap = 500
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 2 * time.Second
	}
}

// Ingester owns every spin-derived key: history, timeline, counters, streaks,
// gaps, rolling windows, features and the session record.
type Ingester struct {
	repo  *repository.StateRepository
	clock util.Clock
	cfg   IngestConfig
	l     *applogger.Logger
}

func NewIngester(repo *repository.StateRepository, clock util.Clock, cfg IngestConfig) *Ingester {
	cfg.setDefaults()
	if clock == nil {
		clock = util.SystemClock()
	}
	return &Ingester{repo: repo, clock: clock, cfg: cfg}
}

// SetLogger injects a structured logger.
func (i *Ingester) SetLogger(l *applogger.Logger) { i.l = l }

func widestWindow() int64 {
	var w int64
	for _, rw := range models.Windows {
		w = max(w, rw.Seconds)
	}
	return w
}

// Ingest records spin n observed at ts (unix seconds or milliseconds) in one
// commit. Every ts >= 0 is taken as given, including 0.
func (i *Ingester) Ingest(ctx context.Context, n int, ts int64) (*models.IngestResult, error) {
	if !wheel.Valid(n) {
		return nil, models.NewValidationError("number", "must be between 0 and 36, got %d", n)
	}
	if ts < 0 {
		return nil, models.NewValidationError("timestamp", "must not be negative, got %d", ts)
	}
	ts = util.NormalizeUnix(ts)

	priorLen := max(features.Window, features.GapHorizon)
	ic, err := i.repo.IngestContext(ctx, n, ts, priorLen, int(widestWindow()))
	if err != nil {
		return nil, fmt.Errorf("ingest %d: %w", n, err)
	}

	spin := models.NewSpin(n, ts)
	seq := ic.TotalSpins + 1
	res := &models.IngestResult{
		EntryID:    fmt.Sprintf("num_%d_%d_%d", ts, n, seq),
		Spin:       spin,
		Position:   seq,
		OutOfOrder: ic.Newest != nil && ts < ic.Newest.Timestamp,
	}

	b := repository.NewBatch()
	if ic.Session == nil {
		s := models.Session{
			ID:         models.NewSessionID(i.clock.Now()),
			StartTime:  ts,
			Status:     models.SessionActive,
			LastUpdate: ts,
		}
		b.OpenSession(s)
		res.SessionID = s.ID
	} else {
		res.SessionID = ic.Session.ID
	}

	b.PushHistory(n, i.cfg.HistoryCap).
		SetLatest(n).
		CountSpin(spin.Color, spin.Sector).
		AddTimeline(ts, n, seq, i.cfg.TimelineCap).
		PutMetadata(*res)

	length := int64(1)
	if ic.StreakColor == spin.Color && ic.StreakLength > 0 {
		length = ic.StreakLength + 1
	}
	b.PushStreak(spin.Color, length, streakColorCap)

	if ic.HasLastSeen {
		b.PushGap(n, ts-ic.LastSeen, gapCap)
	}
	b.SetLastPosition(n, ts)

	for _, w := range rollingWindows(ic.Window, spin, ts) {
		b.SetRollingWindow(w)
	}

	if f, ok := features.Extract(ic.Prior, n, time.Unix(ts, 0)); ok {
		b.PutFeatures(ts, f, n, i.cfg.FeatureHistoryCap)
		res.Features = &f
	}

	b.TouchSession(res.SessionID, ts)

	cctx, cancel := context.WithTimeout(ctx, i.cfg.CommitTimeout)
	defer cancel()
	if err := i.repo.Commit(cctx, b); err != nil {
		return nil, fmt.Errorf("ingest %d: %w", n, err)
	}
	res.Committed = true

	if i.l != nil {
		i.l.Debug("spin ingested",
			applogger.String("entry_id", res.EntryID),
			applogger.Int("number", n),
			applogger.String("session_id", res.SessionID),
			applogger.Bool("out_of_order", res.OutOfOrder))
		if res.OutOfOrder {
			i.l.Warn("spin timestamp precedes timeline head",
				applogger.Int64("ts", ts),
				applogger.Int64("head", ic.Newest.Timestamp))
		}
	}
	return res, nil
}

// rollingWindows recounts each window over prior timeline entries in [ts-w, ts]
// plus the spin being ingested.
func rollingWindows(prior []models.TimelineEntry, spin models.Spin, ts int64) []models.RollingWindow {
	out := make([]models.RollingWindow, 0, len(models.Windows))
	for _, w := range models.Windows {
		w.LastUpdate = ts
		count := func(n int) {
			w.Total++
			switch wheel.ColorOf(n) {
			case wheel.Red:
				w.Red++
			case wheel.Black:
				w.Black++
			case wheel.Green:
				w.Green++
			}
		}
		for _, e := range prior {
			if e.Timestamp >= ts-w.Seconds && e.Timestamp <= ts {
				count(e.Number)
			}
		}
		count(spin.Number)
		out = append(out, w)
	}
	return out
}
