package analytics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	domsvc "SpinPull/internal/domain/service"
	"SpinPull/internal/domain/wheel"
	applogger "SpinPull/pkg/logger"
)

const maxModelConfidence = 0.88

// MLPredictor asks the external model service for groups and falls back to
// another predictor when the call fails or the answer is unusable.
type MLPredictor struct {
	base     *HTTPServiceBase
	kind     models.PredictorType
	fallback domsvc.Predictor
	metrics  domrepo.Metrics
	attempts int
	l        *applogger.Logger
}

// MLOption configures MLPredictor.
type MLOption func(*MLPredictor)

func WithMLAttempts(n int) MLOption {
	return func(p *MLPredictor) {
		if n > 0 {
			p.attempts = n
		}
	}
}

func WithMLLogger(l *applogger.Logger) MLOption {
	return func(p *MLPredictor) { p.l = l }
}

func WithMLMetrics(m domrepo.Metrics) MLOption {
	return func(p *MLPredictor) { p.metrics = m }
}

// NewMLPredictor creates a predictor of kind ensemble or xgboost.
func NewMLPredictor(kind models.PredictorType, baseURL string, timeout time.Duration, fallback domsvc.Predictor, opts ...MLOption) (*MLPredictor, error) {
	if kind != models.PredictorEnsemble && kind != models.PredictorXGBoost {
		return nil, fmt.Errorf("ml predictor: unsupported type %q", kind)
	}
	if fallback == nil {
		return nil, fmt.Errorf("ml predictor: fallback is required")
	}
	p := &MLPredictor{
		base:     NewHTTPServiceBase(strings.TrimRight(baseURL, "/"), timeout),
		kind:     kind,
		fallback: fallback,
		attempts: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *MLPredictor) Type() models.PredictorType { return p.kind }

type modelRequest struct {
	Model    string                `json:"model"`
	Mode     string                `json:"mode"`
	History  []int                 `json:"history"`
	Latest   int                   `json:"latest"`
	Features *models.FeatureVector `json:"features,omitempty"`
}

type modelResponse struct {
	Groups        models.Groups `json:"groups"`
	PredictedMain []int         `json:"predicted_main"`
	Confidence    float64       `json:"confidence"`
	Reasoning     string        `json:"reasoning"`
}

// Predict implements domsvc.Predictor.
func (p *MLPredictor) Predict(ctx context.Context, snap *models.Snapshot, mode models.PredictionMode) (*models.Prediction, error) {
	if snap == nil || len(snap.History) == 0 || snap.Latest == nil {
		return nil, nil
	}
	pred, err := p.remote(ctx, snap, mode)
	if err == nil {
		return pred, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if p.l != nil {
		p.l.Warn("model service unavailable, using fallback predictor",
			applogger.String("model", string(p.kind)),
			applogger.Error(err))
	}
	if p.metrics != nil {
		p.metrics.RecordError("predictor_fallback")
	}
	return p.fallback.Predict(ctx, snap, mode)
}

func (p *MLPredictor) remote(ctx context.Context, snap *models.Snapshot, mode models.PredictionMode) (*models.Prediction, error) {
	req := modelRequest{
		Model:    string(p.kind),
		Mode:     string(mode),
		History:  snap.History,
		Latest:   *snap.Latest,
		Features: snap.Features,
	}
	var resp modelResponse
	if err := p.base.PostJSONWithRetry(ctx, "/predict/"+string(p.kind), req, &resp, p.attempts); err != nil {
		return nil, err
	}
	if err := resp.Groups.Validate(); err != nil {
		return nil, fmt.Errorf("model returned invalid groups: %w", err)
	}
	if math.IsNaN(resp.Confidence) || resp.Confidence < 0 {
		return nil, fmt.Errorf("model returned invalid confidence %v", resp.Confidence)
	}
	main := resp.PredictedMain
	if !validSubset(main) {
		main = mainFor(&resp.Groups, mode)
	}
	reasoning := resp.Reasoning
	if reasoning == "" {
		reasoning = string(p.kind) + " model"
	}
	zero := ZeroProtection(snap.History)
	return &models.Prediction{
		LastNumber:     *snap.Latest,
		Groups:         resp.Groups,
		PredictedMain:  main,
		Type:           p.kind,
		Mode:           mode,
		Confidence:     math.Min(resp.Confidence, maxModelConfidence),
		Reasoning:      reasoning,
		Status:         models.StatusPending,
		ZeroProtection: zero.Active,
	}, nil
}

func validSubset(ns []int) bool {
	if len(ns) == 0 {
		return false
	}
	var seen [wheel.Max + 1]bool
	for _, n := range ns {
		if !wheel.Valid(n) || seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}

func mainFor(g *models.Groups, mode models.PredictionMode) []int {
	if mode == models.ModeGroups {
		return append([]int(nil), g.G6...)
	}
	return append([]int(nil), g.G4...)
}

var _ domsvc.Predictor = (*MLPredictor)(nil)
