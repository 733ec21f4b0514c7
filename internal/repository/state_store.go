package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	"SpinPull/internal/domain/wheel"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/store"
)

// StateRepository is the typed facade over the key/value store. Reads decode
// text values into domain records; writes go through Commit with a Batch.
type StateRepository struct {
	store store.Store
	l     *applogger.Logger
}

func NewStateRepository(s store.Store) *StateRepository {
	return &StateRepository{store: s}
}

// SetLogger injects a structured logger.
func (r *StateRepository) SetLogger(l *applogger.Logger) { r.l = l }

func (r *StateRepository) Backend() string { return r.store.Backend() }

// translate maps store errors onto the domain taxonomy.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, models.ErrDeadlineExceeded, err)
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
	case errors.Is(err, store.ErrWrongType):
		return fmt.Errorf("%s: %w: %w", op, models.ErrMalformedRecord, err)
	case errors.Is(err, store.ErrNil):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Commit applies the batch atomically.
func (r *StateRepository) Commit(ctx context.Context, b *Batch) error {
	if err := b.Err(); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}
	if err := r.store.Commit(ctx, b.Ops()...); err != nil {
		if r.l != nil {
			r.l.Error("state commit failed", applogger.Int("ops", b.Len()), applogger.Error(err))
		}
		return translate("commit", err)
	}
	return nil
}

func (r *StateRepository) Ping(ctx context.Context) error {
	return translate("ping", r.store.Ping(ctx))
}

// getOptional reads a string key, reporting absence as ok=false.
func (r *StateRepository) getOptional(ctx context.Context, key string) (string, bool, error) {
	v, err := r.store.Get(ctx, key)
	if errors.Is(err, store.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, translate("get "+key, err)
	}
	return v, true, nil
}

func (r *StateRepository) counter(ctx context.Context, key string) (int64, error) {
	v, ok, err := r.getOptional(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	return parseInt64(v)
}

// History returns up to limit spins, newest first, skipping offset entries.
func (r *StateRepository) History(ctx context.Context, offset, limit int) ([]int, error) {
	if limit <= 0 {
		return []int{}, nil
	}
	raw, err := r.store.LRange(ctx, domrepo.KeyHistory, int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, translate("history", err)
	}
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		n, err := parseSpin(s)
		if err != nil {
			if r.l != nil {
				r.l.Warn("skipping malformed history entry", applogger.String("value", s))
			}
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *StateRepository) HistoryLen(ctx context.Context) (int64, error) {
	n, err := r.store.LLen(ctx, domrepo.KeyHistory)
	return n, translate("history len", err)
}

// TotalSpins is the number of spins ever ingested, which is also the
// sequence number of the newest history entry.
func (r *StateRepository) TotalSpins(ctx context.Context) (int64, error) {
	return r.counter(ctx, domrepo.KeyTotalSpins)
}

// Latest returns the most recent spin, or nil when nothing was ingested yet.
func (r *StateRepository) Latest(ctx context.Context) (*int, error) {
	v, ok, err := r.getOptional(ctx, domrepo.KeyLatest)
	if err != nil || !ok {
		return nil, err
	}
	n, err := parseSpin(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Counters reads the cumulative ingestion counters and the current streak.
func (r *StateRepository) Counters(ctx context.Context) (models.Counters, error) {
	c := models.Counters{
		Colors:  make(map[wheel.Color]int64, len(wheel.Colors)),
		Sectors: make(map[wheel.Sector]int64, len(wheel.Sectors)),
	}
	var err error
	if c.TotalSpins, err = r.counter(ctx, domrepo.KeyTotalSpins); err != nil {
		return c, err
	}
	for _, col := range wheel.Colors {
		if c.Colors[col], err = r.counter(ctx, domrepo.ColorKey(col)); err != nil {
			return c, err
		}
	}
	if c.Sectors, err = r.SectorCounts(ctx); err != nil {
		return c, err
	}
	if c.CurrentStreak.Length, err = r.counter(ctx, domrepo.KeyCurrentStreak); err != nil {
		return c, err
	}
	colors, err := r.StreakColors(ctx, 1)
	if err != nil {
		return c, err
	}
	if len(colors) > 0 {
		c.CurrentStreak.Color = colors[0]
	}
	return c, nil
}

func (r *StateRepository) SectorCounts(ctx context.Context) (map[wheel.Sector]int64, error) {
	out := make(map[wheel.Sector]int64, len(wheel.Sectors))
	for _, s := range wheel.Sectors {
		n, err := r.counter(ctx, domrepo.SectorKey(s))
		if err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, nil
}

// StreakColors returns up to limit recorded colours, newest first.
func (r *StateRepository) StreakColors(ctx context.Context, limit int) ([]wheel.Color, error) {
	raw, err := r.store.LRange(ctx, domrepo.KeyStreakColors, 0, int64(limit-1))
	if err != nil {
		return nil, translate("streak colors", err)
	}
	out := make([]wheel.Color, 0, len(raw))
	for _, s := range raw {
		c, err := wheel.ParseColor(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Gaps returns the recorded inter-arrival gaps of n, newest first.
func (r *StateRepository) Gaps(ctx context.Context, n int) ([]int64, error) {
	raw, err := r.store.LRange(ctx, domrepo.GapsKey(n), 0, -1)
	if err != nil {
		return nil, translate("gaps", err)
	}
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		v, err := parseInt64(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LastPosition returns the timestamp n was last seen at.
func (r *StateRepository) LastPosition(ctx context.Context, n int) (int64, bool, error) {
	v, ok, err := r.getOptional(ctx, domrepo.LastPositionKey(n))
	if err != nil || !ok {
		return 0, false, err
	}
	ts, err := parseInt64(v)
	return ts, err == nil, err
}

func (r *StateRepository) RollingWindows(ctx context.Context) ([]models.RollingWindow, error) {
	out := make([]models.RollingWindow, 0, len(models.Windows))
	for _, w := range models.Windows {
		m, err := r.store.HGetAll(ctx, domrepo.RollingKey(w.Name))
		if err != nil {
			return nil, translate("rolling "+w.Name, err)
		}
		w, err = decodeRolling(w, m)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// CurrentSession returns the session pointed at by roulette:sessions:current, or nil.
func (r *StateRepository) CurrentSession(ctx context.Context) (*models.Session, error) {
	id, ok, err := r.getOptional(ctx, domrepo.KeySessionCurrent)
	if err != nil || !ok || id == "" {
		return nil, err
	}
	m, err := r.store.HGetAll(ctx, domrepo.SessionKey(id))
	if err != nil {
		return nil, translate("session", err)
	}
	if len(m) == 0 {
		return &models.Session{ID: id, Status: models.SessionActive}, nil
	}
	s, err := decodeSession(m)
	if err != nil {
		return nil, err
	}
	if s.ID == "" {
		s.ID = id
	}
	return s, nil
}

// Timeline returns entries with from <= ts <= to in ascending time order.
func (r *StateRepository) Timeline(ctx context.Context, from, to int64) ([]models.TimelineEntry, error) {
	zs, err := r.store.ZRangeByScore(ctx, domrepo.KeyTimeline, float64(from), float64(to))
	if err != nil {
		return nil, translate("timeline", err)
	}
	return r.decodeTimeline(zs), nil
}

// NewestTimeline returns the entry with the highest timestamp.
func (r *StateRepository) NewestTimeline(ctx context.Context) (*models.TimelineEntry, error) {
	zs, err := r.store.ZRevRange(ctx, domrepo.KeyTimeline, 0, 0)
	if err != nil {
		return nil, translate("timeline head", err)
	}
	entries := r.decodeTimeline(zs)
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// TimelineBySeq indexes the retained timeline by ingest sequence number.
// Entries written without a sequence are left out.
func (r *StateRepository) TimelineBySeq(ctx context.Context) (map[int64]models.TimelineEntry, error) {
	zs, err := r.store.ZRevRange(ctx, domrepo.KeyTimeline, 0, -1)
	if err != nil {
		return nil, translate("timeline", err)
	}
	out := make(map[int64]models.TimelineEntry, len(zs))
	for _, e := range r.decodeTimeline(zs) {
		if e.Seq > 0 {
			out[e.Seq] = e
		}
	}
	return out, nil
}

func (r *StateRepository) TimelineLen(ctx context.Context) (int64, error) {
	n, err := r.store.ZCard(ctx, domrepo.KeyTimeline)
	return n, translate("timeline len", err)
}

func (r *StateRepository) decodeTimeline(zs []store.Z) []models.TimelineEntry {
	out := make([]models.TimelineEntry, 0, len(zs))
	for _, z := range zs {
		e, err := parseTimelineMember(z.Member, z.Score)
		if err != nil {
			if r.l != nil {
				r.l.Warn("skipping malformed timeline member", applogger.String("member", z.Member))
			}
			continue
		}
		out = append(out, e)
	}
	return out
}

// CurrentFeatures returns the latest feature vector, or nil if none was extracted.
func (r *StateRepository) CurrentFeatures(ctx context.Context) (*models.FeatureVector, error) {
	m, err := r.store.HGetAll(ctx, domrepo.KeyFeaturesCurrent)
	if err != nil {
		return nil, translate("features", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	f, err := models.DecodeFeatureVector(m)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *StateRepository) FeatureHistory(ctx context.Context, limit int) ([]models.FeatureRecord, error) {
	raw, err := r.store.LRange(ctx, domrepo.KeyFeaturesHistory, 0, int64(limit-1))
	if err != nil {
		return nil, translate("feature history", err)
	}
	out := make([]models.FeatureRecord, 0, len(raw))
	for _, s := range raw {
		var rec models.FeatureRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			if r.l != nil {
				r.l.Warn("skipping malformed feature record", applogger.Error(err))
			}
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Snapshot assembles the read-only view a predictor works from.
func (r *StateRepository) Snapshot(ctx context.Context, window, colorWindow int) (*models.Snapshot, error) {
	hist, err := r.History(ctx, 0, window)
	if err != nil {
		return nil, err
	}
	latest, err := r.Latest(ctx)
	if err != nil {
		return nil, err
	}
	sectors, err := r.SectorCounts(ctx)
	if err != nil {
		return nil, err
	}
	colors, err := r.StreakColors(ctx, colorWindow)
	if err != nil {
		return nil, err
	}
	features, err := r.CurrentFeatures(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{
		History:      hist,
		Latest:       latest,
		SectorCounts: sectors,
		Colors:       colors,
		Features:     features,
	}, nil
}

// Prediction loads a prediction record. Missing records yield ErrNotFound,
// undecodable ones ErrMalformedRecord.
func (r *StateRepository) Prediction(ctx context.Context, id string) (*models.Prediction, error) {
	m, err := r.store.HGetAll(ctx, domrepo.PredictionKey(id))
	if err != nil {
		return nil, translate("prediction "+id, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("prediction %s: %w", id, models.ErrNotFound)
	}
	p, err := decodePrediction(m)
	if err != nil {
		return nil, fmt.Errorf("prediction %s: %w", id, err)
	}
	return p, nil
}

// PendingIDs returns pending prediction ids, newest first.
func (r *StateRepository) PendingIDs(ctx context.Context) ([]string, error) {
	ids, err := r.store.LRange(ctx, domrepo.KeyPending, 0, -1)
	if err != nil {
		return nil, translate("pending", err)
	}
	return ids, nil
}

func (r *StateRepository) PendingCount(ctx context.Context) (int64, error) {
	n, err := r.store.LLen(ctx, domrepo.KeyPending)
	return n, translate("pending len", err)
}

func (r *StateRepository) GameStats(ctx context.Context) (models.GameStats, error) {
	var gs models.GameStats
	m, err := r.store.HGetAll(ctx, domrepo.KeyGameStats)
	if err != nil {
		return gs, translate("game stats", err)
	}
	if gs.TotalPredictions, err = int64Field(m, "total_predictions"); err != nil {
		return gs, err
	}
	if gs.TotalWins, err = int64Field(m, "total_wins"); err != nil {
		return gs, err
	}
	if gs.TotalLosses, err = int64Field(m, "total_losses"); err != nil {
		return gs, err
	}
	gs.WinRate = models.WinRate(gs.TotalWins, gs.TotalPredictions)
	return gs, nil
}

// GroupStats returns per-group counters for every produced group size.
func (r *StateRepository) GroupStats(ctx context.Context) ([]models.GroupStats, error) {
	out := make([]models.GroupStats, 0, len(models.GroupSizes))
	for _, size := range models.GroupSizes {
		name := models.GroupName(size)
		m, err := r.store.HGetAll(ctx, domrepo.GroupStatsKey(name))
		if err != nil {
			return nil, translate("group stats "+name, err)
		}
		gs := models.GroupStats{Group: name}
		if gs.Total, err = int64Field(m, "total"); err != nil {
			return nil, err
		}
		if gs.Wins, err = int64Field(m, "wins"); err != nil {
			return nil, err
		}
		if gs.Losses, err = int64Field(m, "losses"); err != nil {
			return nil, err
		}
		gs.WinRate = models.WinRate(gs.Wins, gs.Total)
		out = append(out, gs)
	}
	return out, nil
}

func (r *StateRepository) Result(ctx context.Context, id string) (*models.VerificationResult, error) {
	m, err := r.store.HGetAll(ctx, domrepo.ResultKey(id))
	if err != nil {
		return nil, translate("result "+id, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	return decodeResult(m)
}

// ResultTTL returns the remaining lifetime of a result record.
func (r *StateRepository) ResultTTL(ctx context.Context, id string) (int64, error) {
	ttl, err := r.store.TTL(ctx, domrepo.ResultKey(id))
	if err != nil {
		return 0, translate("result ttl", err)
	}
	if ttl < 0 {
		return int64(ttl), nil
	}
	return int64(math.Ceil(ttl.Seconds())), nil
}

// statusPatterns are the key families counted by Status.
var statusPatterns = []string{"roulette:*", "analytics:*", "ml:*", "prediction:*", "ai:*", "result:*"}

// Status reports reachability and per-family key counts. It never returns an error;
// an unreachable store is reported in the result.
func (r *StateRepository) Status(ctx context.Context) models.StoreStatus {
	st := models.StoreStatus{Backend: r.store.Backend()}
	if err := r.store.Ping(ctx); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Reachable = true
	st.Keys = make(map[string]int64, len(statusPatterns))
	for _, p := range statusPatterns {
		keys, err := r.store.Keys(ctx, p)
		if err != nil {
			st.Error = err.Error()
			continue
		}
		st.Keys[strings.TrimSuffix(p, ":*")] = int64(len(keys))
	}
	return st
}

// PurgePredictions removes prediction records, results, the pending list and
// the performance counters. Spin history is left untouched.
func (r *StateRepository) PurgePredictions(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, p := range []string{domrepo.PatternPredictions, domrepo.PatternResults, domrepo.PatternGroupStats} {
		n, err := r.store.DeleteByPattern(ctx, p)
		if err != nil {
			return out, translate("purge "+p, err)
		}
		out[p] = n
	}
	fixed := []string{domrepo.KeyPending, domrepo.KeyGameStats}
	present, err := r.store.Exists(ctx, fixed...)
	if err != nil {
		return out, translate("purge", err)
	}
	ops := make([]store.Op, 0, len(fixed))
	for _, k := range fixed {
		ops = append(ops, store.Del(k))
	}
	if err := r.store.Commit(ctx, ops...); err != nil {
		return out, translate("purge", err)
	}
	out["fixed"] = present
	return out, nil
}

// IngestContext is the prior state one ingest derives its writes from.
type IngestContext struct {
	TotalSpins   int64
	Newest       *models.TimelineEntry
	Prior        []int
	Session      *models.Session
	StreakColor  wheel.Color
	StreakLength int64
	LastSeen     int64
	HasLastSeen  bool
	// Window holds timeline entries within the widest rolling window ending at ts.
	Window []models.TimelineEntry
}

// IngestContext reads everything Ingest needs before building its batch.
func (r *StateRepository) IngestContext(ctx context.Context, n int, ts int64, priorLen, windowSeconds int) (*IngestContext, error) {
	ic := &IngestContext{}
	var err error
	if ic.TotalSpins, err = r.counter(ctx, domrepo.KeyTotalSpins); err != nil {
		return nil, err
	}
	if ic.Newest, err = r.NewestTimeline(ctx); err != nil {
		return nil, err
	}
	if ic.Prior, err = r.History(ctx, 0, priorLen); err != nil {
		return nil, err
	}
	if ic.Session, err = r.CurrentSession(ctx); err != nil {
		return nil, err
	}
	colors, err := r.StreakColors(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(colors) > 0 {
		ic.StreakColor = colors[0]
		if ic.StreakLength, err = r.counter(ctx, domrepo.KeyCurrentStreak); err != nil {
			return nil, err
		}
	}
	if ic.LastSeen, ic.HasLastSeen, err = r.LastPosition(ctx, n); err != nil {
		return nil, err
	}
	if ic.Window, err = r.Timeline(ctx, ts-int64(windowSeconds), ts); err != nil {
		return nil, err
	}
	return ic, nil
}
