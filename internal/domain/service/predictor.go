package service

import (
	"context"

	"SpinPull/internal/domain/models"
)

// Predictor builds a prediction from a read-only analytics snapshot.
// A nil prediction with a nil error means the predictor abstains.
// Returned predictions carry no id or creation time; the registry assigns both.
type Predictor interface {
	Predict(ctx context.Context, snap *models.Snapshot, mode models.PredictionMode) (*models.Prediction, error)
	Type() models.PredictorType
}
