package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	"SpinPull/internal/domain/wheel"
	"SpinPull/internal/repository"
	"SpinPull/internal/services/analytics"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/util"
)

const predictionIDPrefix = "pred_"

// RegistryConfig bounds the pending list and result lifetime.
type RegistryConfig struct {
	PendingCap    int64
	ResultTTL     time.Duration
	CommitTimeout time.Duration
}

func (c *RegistryConfig) setDefaults() {
	if c.PendingCap <= 0 {
		c.PendingCap = 50
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = 7 * 24 * time.Hour
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 2 * time.Second
	}
}

// Registry owns prediction records, the pending list and the performance counters.
type Registry struct {
	repo    *repository.StateRepository
	clock   util.Clock
	cfg     RegistryConfig
	metrics domrepo.Metrics
	l       *applogger.Logger

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewRegistry(repo *repository.StateRepository, clock util.Clock, metrics domrepo.Metrics, cfg RegistryConfig) *Registry {
	cfg.setDefaults()
	if clock == nil {
		clock = util.SystemClock()
	}
	return &Registry{
		repo:    repo,
		clock:   clock,
		cfg:     cfg,
		metrics: metrics,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(clock.Now().UnixNano())), 0),
	}
}

// SetLogger injects a structured logger.
func (r *Registry) SetLogger(l *applogger.Logger) { r.l = l }

func (r *Registry) newID() (string, error) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(r.clock.Now()), r.entropy)
	if err != nil {
		return "", fmt.Errorf("prediction id: %w", err)
	}
	return predictionIDPrefix + id.String(), nil
}

func (r *Registry) commit(ctx context.Context, b *repository.Batch) error {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.CommitTimeout)
	defer cancel()
	return r.repo.Commit(cctx, b)
}

// Register assigns an id and creation time to p, stores it and puts it at
// the head of the pending list.
func (r *Registry) Register(ctx context.Context, p *models.Prediction) (*models.Prediction, error) {
	if p == nil {
		return nil, fmt.Errorf("register: nil prediction")
	}
	if err := p.Groups.Validate(); err != nil {
		if r.l != nil {
			r.l.Error("refusing invalid prediction", applogger.Error(err), applogger.Any("groups", p.Groups))
		}
		return nil, &models.InvariantError{What: err.Error(), Record: p.Groups}
	}
	id, err := r.newID()
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.CreatedAt = r.clock.Now().Unix()
	p.Status = models.StatusPending

	b := repository.NewBatch().PutPrediction(p).PushPending(p.ID, r.cfg.PendingCap)
	if err := r.commit(ctx, b); err != nil {
		return nil, fmt.Errorf("register %s: %w", p.ID, err)
	}
	if r.metrics != nil {
		r.metrics.RecordPrediction(string(p.Type))
	}
	return p, nil
}

// fatal reports errors that must abort the caller instead of being recorded per prediction.
func fatal(err error) bool {
	return errors.Is(err, models.ErrStoreUnavailable) || errors.Is(err, models.ErrDeadlineExceeded)
}

// VerifyAllPending checks every pending prediction against n. Each prediction
// is settled in its own commit. Unusable records are dropped from the pending
// list; other per-prediction failures are reported in the result's Error.
func (r *Registry) VerifyAllPending(ctx context.Context, n int) ([]models.VerificationResult, error) {
	if !wheel.Valid(n) {
		return nil, models.NewValidationError("number", "must be between 0 and 36, got %d", n)
	}
	ids, err := r.repo.PendingIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify pending: %w", err)
	}
	results := make([]models.VerificationResult, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		res, err := r.verify(ctx, id, n, false)
		switch {
		case err == nil && res == nil:
			continue
		case err == nil:
			results = append(results, *res)
		case fatal(err):
			return results, err
		default:
			if r.l != nil {
				r.l.Error("prediction verification failed", applogger.String("prediction_id", id), applogger.Error(err))
			}
			if r.metrics != nil {
				r.metrics.RecordError("verification")
			}
			results = append(results, models.VerificationResult{PredictionID: id, ActualNumber: n, Error: err.Error()})
		}
	}
	return results, nil
}

// VerifyOne settles a single pending prediction against n.
func (r *Registry) VerifyOne(ctx context.Context, id string, n int) (*models.VerificationResult, error) {
	if !wheel.Valid(n) {
		return nil, models.NewValidationError("number", "must be between 0 and 36, got %d", n)
	}
	if id == "" {
		return nil, models.NewValidationError("prediction_id", "is required")
	}
	return r.verify(ctx, id, n, true)
}

// verify settles one prediction. In lenient mode a missing, malformed or
// already verified record is removed from the pending list and (nil, nil)
// is returned; strict mode reports those cases as errors instead.
func (r *Registry) verify(ctx context.Context, id string, n int, strict bool) (*models.VerificationResult, error) {
	p, err := r.repo.Prediction(ctx, id)
	if err != nil {
		if fatal(err) {
			return nil, err
		}
		if strict {
			return nil, err
		}
		if r.l != nil {
			r.l.Warn("dropping unusable pending prediction", applogger.String("prediction_id", id), applogger.Error(err))
		}
		return nil, r.commit(ctx, repository.NewBatch().RemovePending(id))
	}

	if p.Status == models.StatusVerified {
		if strict {
			return nil, fmt.Errorf("prediction %s: %w", id, models.ErrAlreadyVerified)
		}
		return nil, r.commit(ctx, repository.NewBatch().RemovePending(id))
	}

	if strict {
		pending, err := r.repo.PendingIDs(ctx)
		if err != nil {
			return nil, err
		}
		if !contains(pending, id) {
			return nil, models.NewValidationError("prediction_id", "prediction %s is no longer pending", id)
		}
	}

	res := models.Evaluate(p, n)
	res.VerifiedAt = r.clock.Now().Unix()

	b := repository.NewBatch().
		CountVerification(res).
		PutResult(res, r.cfg.ResultTTL).
		RemovePending(id).
		MarkVerified(id, n, res.VerifiedAt)
	if err := r.commit(ctx, b); err != nil {
		return nil, fmt.Errorf("verify %s: %w", id, err)
	}

	if r.metrics != nil {
		for _, g := range res.PerGroup {
			r.metrics.RecordVerification(g.Name, g.IsWinner)
		}
	}
	if r.l != nil {
		r.l.Info("prediction verified",
			applogger.String("prediction_id", id),
			applogger.Int("actual", n),
			applogger.Bool("winner", res.OverallWinner),
			applogger.Int("winning_groups", res.WinningGroupCount))
	}
	return &res, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Get returns one prediction record.
func (r *Registry) Get(ctx context.Context, id string) (*models.Prediction, error) {
	return r.repo.Prediction(ctx, id)
}

// Result returns a verification record together with its remaining lifetime.
func (r *Registry) Result(ctx context.Context, id string) (*models.VerificationResult, error) {
	res, err := r.repo.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	if ttl, err := r.repo.ResultTTL(ctx, id); err == nil && ttl > 0 {
		res.ExpiresIn = ttl
	}
	return res, nil
}

// Pending returns pending predictions, newest first. Records that vanished
// or cannot be decoded are skipped.
func (r *Registry) Pending(ctx context.Context) ([]*models.Prediction, error) {
	ids, err := r.repo.PendingIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Prediction, 0, len(ids))
	for _, id := range ids {
		p, err := r.repo.Prediction(ctx, id)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Stats returns the prediction performance view.
func (r *Registry) Stats(ctx context.Context) (*models.AIStats, error) {
	game, err := r.repo.GameStats(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := r.repo.GroupStats(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := r.repo.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	hist, err := r.repo.History(ctx, 0, 200)
	if err != nil {
		return nil, err
	}
	return &models.AIStats{
		Game:     game,
		Groups:   groups,
		Pending:  pending,
		Detailed: analytics.DetailedStats(hist),
	}, nil
}
