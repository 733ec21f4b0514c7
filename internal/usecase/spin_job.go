package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"SpinPull/internal/domain/models"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/queue"
)

// SpinIngestJobType is the queue message type carrying a SpinMessage.
const SpinIngestJobType = "spin.ingest"

// SpinIngestJob processes spins written to the Redis queue by the scraper.
type SpinIngestJob struct {
	gate SpinSubmitter
	l    *applogger.Logger
}

func NewSpinIngestJob(gate SpinSubmitter, l *applogger.Logger) *SpinIngestJob {
	return &SpinIngestJob{gate: gate, l: l}
}

func (j *SpinIngestJob) Name() string { return "spin-ingest" }

func (j *SpinIngestJob) Type() string { return SpinIngestJobType }

// Handle submits the spin. Invalid spins are logged and acknowledged since
// retrying them cannot succeed; other failures are retried by the queue.
func (j *SpinIngestJob) Handle(ctx context.Context, payload json.RawMessage) error {
	m, err := queue.ParsePayload[SpinMessage](payload)
	if err == nil {
		err = m.validate()
	}
	if err != nil {
		j.drop(err)
		return nil
	}
	err = j.gate.Submit(ctx, *m.Number, m.Timestamp)
	if errors.Is(err, models.ErrValidation) {
		j.drop(err)
		return nil
	}
	return err
}

func (j *SpinIngestJob) drop(err error) {
	if j.l != nil {
		j.l.Warn("dropping invalid queued spin", applogger.Error(err))
	}
}

var _ queue.Job = (*SpinIngestJob)(nil)
