package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	pkgkafka "SpinPull/pkg/kafka"
)

// SpinSubmitter accepts a scraped spin for processing.
type SpinSubmitter interface {
	Submit(ctx context.Context, n int, ts *int64) error
}

// SpinMessage is the scraper's wire format on both the Kafka topic and the Redis queue.
// Timestamp is unix seconds or milliseconds; an absent timestamp means "now".
type SpinMessage struct {
	Number    *int   `json:"number"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

func (m SpinMessage) validate() error {
	if m.Number == nil {
		return models.NewValidationError("number", "is required")
	}
	return nil
}

// KafkaSpinsHandler consumes scraped spins from Kafka.
type KafkaSpinsHandler struct {
	topic   string
	gate    SpinSubmitter
	metrics domrepo.Metrics
}

func NewKafkaSpinsHandler(topic string, gate SpinSubmitter, metrics domrepo.Metrics) *KafkaSpinsHandler {
	return &KafkaSpinsHandler{topic: topic, gate: gate, metrics: metrics}
}

func (h *KafkaSpinsHandler) Topic() string { return h.topic }

// Handle decodes {number, timestamp} and submits it. Malformed and invalid
// messages are permanent failures and go straight to the DLQ.
func (h *KafkaSpinsHandler) Handle(ctx context.Context, b []byte) error {
	var m SpinMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode spin: %w", err))
	}
	if err := m.validate(); err != nil {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(err)
	}
	err := h.gate.Submit(ctx, *m.Number, m.Timestamp)
	if errors.Is(err, models.ErrValidation) {
		return pkgkafka.Permanent(err)
	}
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaSpinsHandler)(nil)
