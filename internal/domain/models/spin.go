package models

import (
	"time"

	"SpinPull/internal/domain/wheel"
)

// Spin is one wheel outcome with its derived classifications.
type Spin struct {
	Number    int          `json:"number"`
	Color     wheel.Color  `json:"color"`
	Sector    wheel.Sector `json:"sector"`
	Parity    wheel.Parity `json:"parity"`
	Dozen     int          `json:"dozen"`
	Column    int          `json:"column"`
	Timestamp int64        `json:"timestamp,omitempty"`
}

func NewSpin(n int, ts int64) Spin {
	return Spin{
		Number:    n,
		Color:     wheel.ColorOf(n),
		Sector:    wheel.SectorOf(n),
		Parity:    wheel.ParityOf(n),
		Dozen:     wheel.DozenOf(n),
		Column:    wheel.ColumnOf(n),
		Timestamp: ts,
	}
}

// IngestResult describes one committed state transition.
type IngestResult struct {
	EntryID    string         `json:"entry_id"`
	Spin       Spin           `json:"spin"`
	SessionID  string         `json:"session_id"`
	Position   int64          `json:"position"`
	OutOfOrder bool           `json:"out_of_order"`
	Features   *FeatureVector `json:"features,omitempty"`
	Committed  bool           `json:"committed"`
}

// Session identifies the current ingestion epoch.
type Session struct {
	ID         string `json:"id"`
	StartTime  int64  `json:"start_time"`
	Count      int64  `json:"count"`
	Status     string `json:"status"`
	LastUpdate int64  `json:"last_update"`
}

const SessionActive = "active"

// NewSessionID formats the id of a session started at t.
func NewSessionID(t time.Time) string {
	return "session_" + t.UTC().Format("20060102_150405")
}

// TimelineEntry is a spin as recorded on the time-indexed timeline.
type TimelineEntry struct {
	Number    int   `json:"number"`
	Seq       int64 `json:"seq"`
	Timestamp int64 `json:"timestamp"`
}

// SpinOutcome is the result of processing one incoming number end to end.
type SpinOutcome struct {
	Ingest        IngestResult         `json:"number_data"`
	VerifiedCount int                  `json:"verified_predictions"`
	Verified      []VerificationResult `json:"prediction_results"`
	NewPrediction *Prediction          `json:"new_prediction,omitempty"`
}
