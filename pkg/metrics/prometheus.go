package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	spinsTotal    *prometheus.CounterVec
	lastNumber    prometheus.Gauge
	predictions   *prometheus.CounterVec
	verifications *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		spinsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinpull_spins_total",
				Help: "Total number of spins ingested, by colour",
			},
			[]string{"color"},
		),
		lastNumber: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spinpull_last_number",
				Help: "Most recently ingested wheel number",
			},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinpull_predictions_total",
				Help: "Predictions registered, by predictor type",
			},
			[]string{"type"},
		),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinpull_verifications_total",
				Help: "Verified prediction groups, by group and outcome",
			},
			[]string{"group", "win"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spinpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSpin(color string) {
	r.spinsTotal.WithLabelValues(color).Inc()
}

func (r *Recorder) RecordLastNumber(n int) {
	r.lastNumber.Set(float64(n))
}

func (r *Recorder) RecordPrediction(kind string) {
	r.predictions.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordVerification(group string, win bool) {
	r.verifications.WithLabelValues(group, strconv.FormatBool(win)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
