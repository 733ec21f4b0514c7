package repository

import (
	"context"

	"SpinPull/internal/domain/models"
)

// EventPublisher fans processed spins out to downstream consumers.
type EventPublisher interface {
	PublishSpin(ctx context.Context, outcome *models.SpinOutcome) error
	PublishPrediction(ctx context.Context, p *models.Prediction) error
	Close() error
}

// Broadcaster pushes live updates to connected clients. Broadcast must not block.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

type Metrics interface {
	RecordSpin(color string)
	RecordLastNumber(n int)
	RecordPrediction(kind string)
	RecordVerification(group string, win bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
