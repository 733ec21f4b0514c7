package repository

import (
	"context"
	"fmt"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
)

// Producer is the subset of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// Event is the envelope written to the events topic.
type Event struct {
	Type      string      `json:"type"`
	Key       string      `json:"key"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// KafkaPublisher emits processed spins and new predictions to one topic.
// Spins are keyed by session so a session's events stay ordered on one
// partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishSpin(ctx context.Context, o *models.SpinOutcome) error {
	ev := Event{
		Type:      "spin",
		Key:       o.Ingest.SessionID,
		Timestamp: o.Ingest.Spin.Timestamp,
		Payload:   o,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Key), ev); err != nil {
		return fmt.Errorf("publish spin %s: %w", o.Ingest.EntryID, err)
	}
	return nil
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, pred *models.Prediction) error {
	ev := Event{
		Type:      "prediction",
		Key:       pred.ID,
		Timestamp: pred.CreatedAt,
		Payload:   pred,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Key), ev); err != nil {
		return fmt.Errorf("publish prediction %s: %w", pred.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }
