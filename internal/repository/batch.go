package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	"SpinPull/internal/domain/wheel"
	"SpinPull/pkg/store"
)

// Batch accumulates typed mutations for a single atomic commit.
// Build one per state transition and hand it to StateRepository.Commit.
type Batch struct {
	ops []store.Op
	err error
}

func NewBatch() *Batch { return &Batch{} }

func (b *Batch) add(ops ...store.Op) *Batch {
	b.ops = append(b.ops, ops...)
	return b
}

// fail records the first encoding error; Commit refuses the batch afterwards.
func (b *Batch) fail(err error) *Batch {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Batch) Len() int { return len(b.ops) }

func (b *Batch) Ops() []store.Op { return b.ops }

func (b *Batch) Err() error { return b.err }

// --- ingestion ---

func (b *Batch) PushHistory(n int, capacity int64) *Batch {
	return b.add(
		store.LPush(domrepo.KeyHistory, itoa(n)),
		store.LTrim(domrepo.KeyHistory, 0, capacity-1),
	)
}

func (b *Batch) SetLatest(n int) *Batch { return b.add(store.Set(domrepo.KeyLatest, itoa(n))) }

func (b *Batch) CountSpin(c wheel.Color, s wheel.Sector) *Batch {
	return b.add(
		store.Incr(domrepo.KeyTotalSpins),
		store.Incr(domrepo.ColorKey(c)),
		store.Incr(domrepo.SectorKey(s)),
	)
}

// AddTimeline records (ts, n) and keeps the newest capacity entries.
func (b *Batch) AddTimeline(ts int64, n int, seq int64, capacity int64) *Batch {
	return b.add(
		store.ZAdd(domrepo.KeyTimeline, float64(ts), timelineMember(n, seq)),
		store.ZRemRangeByRank(domrepo.KeyTimeline, 0, -capacity-1),
	)
}

func (b *Batch) PutMetadata(res models.IngestResult) *Batch {
	ts := res.Spin.Timestamp
	return b.add(store.HSet(domrepo.MetadataKey(res.EntryID), map[string]string{
		"entry_id":       res.EntryID,
		"number":         itoa(res.Spin.Number),
		"color":          string(res.Spin.Color),
		"sector":         string(res.Spin.Sector),
		"timestamp":      time.Unix(ts, 0).UTC().Format(time.RFC3339),
		"timestamp_unix": i64(ts),
		"session_id":     res.SessionID,
		"out_of_order":   boolText(res.OutOfOrder),
	}))
}

// PushStreak records the colour on the pattern list and sets the current streak length.
func (b *Batch) PushStreak(c wheel.Color, length int64, colorCap int64) *Batch {
	return b.add(
		store.LPush(domrepo.KeyStreakColors, string(c)),
		store.LTrim(domrepo.KeyStreakColors, 0, colorCap-1),
		store.Set(domrepo.KeyCurrentStreak, i64(length)),
	)
}

func (b *Batch) PushGap(n int, gap int64, capacity int64) *Batch {
	return b.add(
		store.LPush(domrepo.GapsKey(n), i64(gap)),
		store.LTrim(domrepo.GapsKey(n), 0, capacity-1),
	)
}

func (b *Batch) SetLastPosition(n int, ts int64) *Batch {
	return b.add(store.Set(domrepo.LastPositionKey(n), i64(ts)))
}

func (b *Batch) SetRollingWindow(w models.RollingWindow) *Batch {
	return b.add(store.HSet(domrepo.RollingKey(w.Name), encodeRolling(w)))
}

func (b *Batch) PutFeatures(ts int64, f models.FeatureVector, target int, capacity int64) *Batch {
	fields := f.Encode()
	fields["timestamp"] = i64(ts)
	doc, err := json.Marshal(models.FeatureRecord{Timestamp: ts, Features: f, Target: target})
	if err != nil {
		return b.fail(fmt.Errorf("encode feature record: %w", err))
	}
	return b.add(
		store.Del(domrepo.KeyFeaturesCurrent),
		store.HSet(domrepo.KeyFeaturesCurrent, fields),
		store.LPush(domrepo.KeyFeaturesHistory, string(doc)),
		store.LTrim(domrepo.KeyFeaturesHistory, 0, capacity-1),
	)
}

// OpenSession writes a new session record and makes it current.
func (b *Batch) OpenSession(s models.Session) *Batch {
	return b.add(
		store.HSet(domrepo.SessionKey(s.ID), encodeSession(s)),
		store.Set(domrepo.KeySessionCurrent, s.ID),
	)
}

func (b *Batch) TouchSession(id string, ts int64) *Batch {
	return b.add(
		store.HIncrBy(domrepo.SessionKey(id), "count", 1),
		store.HSet(domrepo.SessionKey(id), map[string]string{"last_update": i64(ts)}),
	)
}

// --- predictions ---

func (b *Batch) PutPrediction(p *models.Prediction) *Batch {
	fields, err := encodePrediction(p)
	if err != nil {
		return b.fail(fmt.Errorf("encode prediction %s: %w", p.ID, err))
	}
	return b.add(store.HSet(domrepo.PredictionKey(p.ID), fields))
}

func (b *Batch) PushPending(id string, capacity int64) *Batch {
	return b.add(
		store.LPush(domrepo.KeyPending, id),
		store.LTrim(domrepo.KeyPending, 0, capacity-1),
	)
}

func (b *Batch) RemovePending(id string) *Batch {
	return b.add(store.LRem(domrepo.KeyPending, 0, id))
}

// CountVerification bumps the aggregate and per-group counters for one result.
func (b *Batch) CountVerification(r models.VerificationResult) *Batch {
	outcome := "total_losses"
	if r.OverallWinner {
		outcome = "total_wins"
	}
	b.add(
		store.HIncrBy(domrepo.KeyGameStats, "total_predictions", 1),
		store.HIncrBy(domrepo.KeyGameStats, outcome, 1),
	)
	for _, g := range r.PerGroup {
		field := "losses"
		if g.IsWinner {
			field = "wins"
		}
		b.add(
			store.HIncrBy(domrepo.GroupStatsKey(g.Name), "total", 1),
			store.HIncrBy(domrepo.GroupStatsKey(g.Name), field, 1),
		)
	}
	return b
}

func (b *Batch) PutResult(r models.VerificationResult, ttl time.Duration) *Batch {
	fields, err := encodeResult(r)
	if err != nil {
		return b.fail(fmt.Errorf("encode result %s: %w", r.PredictionID, err))
	}
	return b.add(
		store.HSet(domrepo.ResultKey(r.PredictionID), fields),
		store.Expire(domrepo.ResultKey(r.PredictionID), ttl),
	)
}

func (b *Batch) MarkVerified(id string, actual int, at int64) *Batch {
	return b.add(store.HSet(domrepo.PredictionKey(id), map[string]string{
		"status":        string(models.StatusVerified),
		"actual_number": strconv.Itoa(actual),
		"verified_at":   i64(at),
	}))
}
