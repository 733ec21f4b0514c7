package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	domsvc "SpinPull/internal/domain/service"
	"SpinPull/internal/domain/wheel"
	"SpinPull/internal/repository"
	"SpinPull/internal/service/cache"
	"SpinPull/internal/service/lock"
	"SpinPull/internal/services/analytics"
	applogger "SpinPull/pkg/logger"
)

// Live update event names.
const (
	EventSpin         = "spin"
	EventPrediction   = "prediction"
	EventVerification = "verification"
)

const currentSessionScope = "current"

// OrchestratorConfig controls the snapshot handed to the predictor.
type OrchestratorConfig struct {
	SnapshotWindow int
	ColorWindow    int
	// Mode picks predicted_main for predictions created after each spin.
	Mode models.PredictionMode
}

// Orchestrator runs verify, ingest, predict and register for each spin under
// the session writer lock, then fans the outcome out.
type Orchestrator struct {
	ingest    *Ingester
	registry  *Registry
	repo      *repository.StateRepository
	predictor domsvc.Predictor
	lock      *lock.WriterLock
	cache     *cache.TTLCache
	publisher domrepo.EventPublisher
	hub       domrepo.Broadcaster
	metrics   domrepo.Metrics
	cfg       OrchestratorConfig
	l         *applogger.Logger
}

func NewOrchestrator(
	ingest *Ingester,
	registry *Registry,
	repo *repository.StateRepository,
	predictor domsvc.Predictor,
	wl *lock.WriterLock,
	c *cache.TTLCache,
	metrics domrepo.Metrics,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.SnapshotWindow <= 0 {
		cfg.SnapshotWindow = analytics.DefaultHotPrefix
	}
	if cfg.ColorWindow <= 0 {
		cfg.ColorWindow = analytics.DefaultColorWindow
	}
	if cfg.Mode == "" {
		cfg.Mode = models.ModeGroups
	}
	return &Orchestrator{
		ingest:    ingest,
		registry:  registry,
		repo:      repo,
		predictor: predictor,
		lock:      wl,
		cache:     c,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// SetLogger injects a structured logger.
func (o *Orchestrator) SetLogger(l *applogger.Logger) { o.l = l }

// SetPublisher attaches the downstream event publisher.
func (o *Orchestrator) SetPublisher(p domrepo.EventPublisher) { o.publisher = p }

// SetBroadcaster attaches the live feed.
func (o *Orchestrator) SetBroadcaster(b domrepo.Broadcaster) { o.hub = b }

// acquire takes the writer lock of the current session. The lock is keyed
// on the current-session pointer rather than the id, since the first ingest
// creates the session while already holding the lock.
func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	return o.lock.Acquire(ctx, currentSessionScope)
}

func (o *Orchestrator) snapshot(ctx context.Context) (*models.Snapshot, error) {
	return o.repo.Snapshot(ctx, o.cfg.SnapshotWindow, o.cfg.ColorWindow)
}

// ProcessSpin verifies pending predictions against n, ingests n, and
// registers a fresh prediction over the updated state. A nil ts means the
// spin carried no timestamp and is stamped with the ingest clock.
func (o *Orchestrator) ProcessSpin(ctx context.Context, n int, ts *int64) (*models.SpinOutcome, error) {
	start := time.Now()
	if !wheel.Valid(n) {
		o.recordError("validation")
		return nil, models.NewValidationError("number", "must be between 0 and 36, got %d", n)
	}
	at := o.ingest.clock.Now().Unix()
	if ts != nil {
		if *ts < 0 {
			o.recordError("validation")
			return nil, models.NewValidationError("timestamp", "must not be negative, got %d", *ts)
		}
		at = *ts
	}

	out, err := o.processLocked(ctx, n, at)
	if err != nil {
		o.recordError(errorKind(err))
		return nil, err
	}

	o.afterSpin(ctx, out)
	if o.metrics != nil {
		o.metrics.RecordLatency("process_spin", time.Since(start).Seconds())
	}
	return out, nil
}

func (o *Orchestrator) processLocked(ctx context.Context, n int, ts int64) (*models.SpinOutcome, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	verified, err := o.registry.VerifyAllPending(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("process spin: %w", err)
	}

	ing, err := o.ingest.Ingest(ctx, n, ts)
	if err != nil {
		return nil, fmt.Errorf("process spin: %w", err)
	}

	out := &models.SpinOutcome{Ingest: *ing, Verified: verified}
	for _, r := range verified {
		if r.Error == "" {
			out.VerifiedCount++
		}
	}

	pred, err := o.predictAndRegister(ctx, o.cfg.Mode)
	switch {
	case err == nil:
		out.NewPrediction = pred
	case errors.Is(err, models.ErrInvariantViolation):
		// The spin is committed; a broken prediction only loses this round.
		o.recordError("invariant")
	default:
		return nil, fmt.Errorf("process spin: %w", err)
	}
	return out, nil
}

// predictAndRegister runs the predictor over a fresh snapshot. A nil
// prediction means the predictor abstained.
func (o *Orchestrator) predictAndRegister(ctx context.Context, mode models.PredictionMode) (*models.Prediction, error) {
	snap, err := o.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	pred, err := o.predictor.Predict(ctx, snap, mode)
	if err != nil {
		var inv *models.InvariantError
		if errors.As(err, &inv) && o.l != nil {
			o.l.Error("predictor produced an invalid prediction",
				applogger.Error(err),
				applogger.Any("record", inv.Record))
		}
		return nil, err
	}
	if pred == nil {
		return nil, nil
	}
	return o.registry.Register(ctx, pred)
}

// Predict produces and registers a prediction without ingesting a spin.
func (o *Orchestrator) Predict(ctx context.Context, mode models.PredictionMode) (*models.Prediction, error) {
	switch mode {
	case models.ModeGroups, models.ModeIndividual, models.ModeSector, models.ModeColor:
	default:
		return nil, models.NewValidationError("type", "unknown prediction type %q", mode)
	}
	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	pred, err := o.predictAndRegister(ctx, mode)
	release()
	if err != nil {
		o.recordError(errorKind(err))
		return nil, err
	}
	if pred != nil {
		o.invalidate()
		o.publishPrediction(ctx, pred)
		o.broadcast(EventPrediction, pred)
	}
	return pred, nil
}

// CheckResult verifies one pending prediction against n without ingesting n.
func (o *Orchestrator) CheckResult(ctx context.Context, id string, n int) (*models.VerificationResult, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	res, err := o.registry.VerifyOne(ctx, id, n)
	release()
	if err != nil {
		return nil, err
	}
	o.invalidate()
	o.broadcast(EventVerification, res)
	return res, nil
}

// PurgePredictions clears prediction records, results, the pending list and
// the performance counters. Spin history is kept.
func (o *Orchestrator) PurgePredictions(ctx context.Context) (map[string]int64, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	out, err := o.repo.PurgePredictions(ctx)
	o.invalidate()
	if err == nil && o.l != nil {
		o.l.Info("prediction state purged", applogger.Any("deleted", out))
	}
	return out, err
}

func (o *Orchestrator) afterSpin(ctx context.Context, out *models.SpinOutcome) {
	o.invalidate()

	if o.metrics != nil {
		o.metrics.RecordSpin(string(out.Ingest.Spin.Color))
		o.metrics.RecordLastNumber(out.Ingest.Spin.Number)
	}

	if o.publisher != nil {
		if err := o.publisher.PublishSpin(ctx, out); err != nil {
			o.warnPublish("spin", err)
		}
	}
	if out.NewPrediction != nil {
		o.publishPrediction(ctx, out.NewPrediction)
	}

	o.broadcast(EventSpin, out)

	if o.l != nil {
		o.l.Debug("spin processed",
			applogger.Int("number", out.Ingest.Spin.Number),
			applogger.String("entry_id", out.Ingest.EntryID),
			applogger.Int("verified", out.VerifiedCount),
			applogger.Bool("predicted", out.NewPrediction != nil))
	}
}

func (o *Orchestrator) publishPrediction(ctx context.Context, p *models.Prediction) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishPrediction(ctx, p); err != nil {
		o.warnPublish("prediction", err)
	}
}

func (o *Orchestrator) warnPublish(what string, err error) {
	if o.metrics != nil {
		o.metrics.RecordError("publish")
	}
	if o.l != nil {
		o.l.Warn("event publish failed", applogger.String("event", what), applogger.Error(err))
	}
}

func (o *Orchestrator) broadcast(event string, payload interface{}) {
	if o.hub != nil {
		o.hub.Broadcast(event, payload)
	}
}

func (o *Orchestrator) invalidate() {
	if o.cache != nil {
		o.cache.Delete(cacheKeyRouletteStats, cacheKeyAIStats)
	}
}

func (o *Orchestrator) recordError(kind string) {
	if o.metrics != nil {
		o.metrics.RecordError(kind)
	}
}

// errorKind labels an error for the errors_total metric.
func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, models.ErrDeadlineExceeded):
		return "deadline"
	case errors.Is(err, models.ErrInvariantViolation):
		return "invariant"
	}
	return "internal"
}
