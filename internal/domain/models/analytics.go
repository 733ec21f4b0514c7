package models

import (
	"fmt"
	"strconv"

	"SpinPull/internal/domain/wheel"
)

// FeatureVector is the fixed-schema model input extracted at ingestion.
// Field order is the schema order; new features go at the end.
type FeatureVector struct {
	CurrentNumber            float64 `json:"current_number"`
	Last1                    float64 `json:"last_1"`
	Last2                    float64 `json:"last_2"`
	Last3                    float64 `json:"last_3"`
	RedCount10               float64 `json:"red_count_10"`
	BlackCount10             float64 `json:"black_count_10"`
	GreenCount10             float64 `json:"green_count_10"`
	SectorVoisinsZeroCount10 float64 `json:"sector_voisins_zero_count_10"`
	SectorTiersCount10       float64 `json:"sector_tiers_count_10"`
	SectorOrphelinsCount10   float64 `json:"sector_orphelins_count_10"`
	MeanLast10               float64 `json:"mean_last_10"`
	StdLast10                float64 `json:"std_last_10"`
	GapSinceLast             float64 `json:"gap_since_last"`
	EvenCount10              float64 `json:"even_count_10"`
	OddCount10               float64 `json:"odd_count_10"`
	Hour                     float64 `json:"hour"`
	Minute                   float64 `json:"minute"`
}

// FeatureNames lists the schema in order.
var FeatureNames = []string{
	"current_number",
	"last_1", "last_2", "last_3",
	"red_count_10", "black_count_10", "green_count_10",
	"sector_voisins_zero_count_10", "sector_tiers_count_10", "sector_orphelins_count_10",
	"mean_last_10", "std_last_10",
	"gap_since_last",
	"even_count_10", "odd_count_10",
	"hour", "minute",
}

func (f *FeatureVector) fields() []*float64 {
	return []*float64{
		&f.CurrentNumber,
		&f.Last1, &f.Last2, &f.Last3,
		&f.RedCount10, &f.BlackCount10, &f.GreenCount10,
		&f.SectorVoisinsZeroCount10, &f.SectorTiersCount10, &f.SectorOrphelinsCount10,
		&f.MeanLast10, &f.StdLast10,
		&f.GapSinceLast,
		&f.EvenCount10, &f.OddCount10,
		&f.Hour, &f.Minute,
	}
}

// Values returns the features in schema order.
func (f FeatureVector) Values() []float64 {
	ptrs := f.fields()
	out := make([]float64, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Encode renders the vector as store-boundary text fields.
func (f FeatureVector) Encode() map[string]string {
	out := make(map[string]string, len(FeatureNames))
	for i, v := range f.Values() {
		out[FeatureNames[i]] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// DecodeFeatureVector parses fields written by Encode. Unknown fields are ignored.
func DecodeFeatureVector(m map[string]string) (FeatureVector, error) {
	var f FeatureVector
	ptrs := f.fields()
	for i, name := range FeatureNames {
		raw, ok := m[name]
		if !ok {
			return f, fmt.Errorf("%w: feature %s missing", ErrMalformedRecord, name)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return f, fmt.Errorf("%w: feature %s: %v", ErrMalformedRecord, name, err)
		}
		*ptrs[i] = v
	}
	return f, nil
}

// FeatureRecord is one entry of the bounded feature history.
type FeatureRecord struct {
	Timestamp int64         `json:"timestamp"`
	Features  FeatureVector `json:"features"`
	Target    int           `json:"target"`
}

type Streak struct {
	Color  wheel.Color `json:"color"`
	Length int64       `json:"length"`
}

// RollingWindow aggregates spins whose timestamp is within Seconds of LastUpdate.
type RollingWindow struct {
	Name       string `json:"name"`
	Seconds    int64  `json:"seconds"`
	Total      int64  `json:"total"`
	Red        int64  `json:"red"`
	Black      int64  `json:"black"`
	Green      int64  `json:"green"`
	LastUpdate int64  `json:"last_update"`
}

// Windows are the rolling horizons maintained per spin.
var Windows = []RollingWindow{
	{Name: "1min", Seconds: 60},
	{Name: "5min", Seconds: 300},
	{Name: "15min", Seconds: 900},
}

// Counters are the cumulative ingestion counters.
type Counters struct {
	TotalSpins    int64                  `json:"total_spins"`
	Colors        map[wheel.Color]int64  `json:"colors"`
	Sectors       map[wheel.Sector]int64 `json:"sectors"`
	CurrentStreak Streak                 `json:"current_streak"`
}

// Snapshot is the read-only analytics view handed to predictors.
type Snapshot struct {
	History      []int                  `json:"history"`
	Latest       *int                   `json:"latest,omitempty"`
	SectorCounts map[wheel.Sector]int64 `json:"sector_counts"`
	Colors       []wheel.Color          `json:"colors"`
	Features     *FeatureVector         `json:"features,omitempty"`
}

type HotCold struct {
	Hot         []int       `json:"hot"`
	Cold        []int       `json:"cold"`
	Frequencies map[int]int `json:"frequencies"`
}

type ColorProbability struct {
	Color       wheel.Color `json:"color"`
	Count       int         `json:"count"`
	Probability float64     `json:"probability"`
}

type ColorStreaks struct {
	Current     Streak                `json:"current_streak"`
	MaxPerColor map[wheel.Color]int64 `json:"max_streak_per_color"`
}

type ZeroProtection struct {
	Active   bool `json:"active"`
	Position int  `json:"position"`
}

// DetailedStats are table-layout splits over the stored history.
type DetailedStats struct {
	Sample  int            `json:"sample"`
	Dozens  map[string]int `json:"dozens"`
	Columns map[string]int `json:"columns"`
	Parity  map[string]int `json:"parity"`
	Colors  map[string]int `json:"colors"`
}

// RouletteStats is the aggregate view served to clients.
type RouletteStats struct {
	Counters
	Latest           *int               `json:"latest,omitempty"`
	ColorPercentages map[string]float64 `json:"color_percentages"`
	Rolling          []RollingWindow    `json:"rolling_windows"`
	Detailed         DetailedStats      `json:"detailed"`
	Session          *Session           `json:"session,omitempty"`
}

// PatternReport bundles the read-only pattern queries.
type PatternReport struct {
	HotCold            HotCold            `json:"hot_cold"`
	ColorProbabilities []ColorProbability `json:"color_probabilities"`
	OptimalSector      wheel.Sector       `json:"optimal_sector"`
	Streaks            ColorStreaks       `json:"streaks"`
	ZeroProtection     ZeroProtection     `json:"zero_protection"`
	Rolling            []RollingWindow    `json:"rolling_windows"`
	Features           *FeatureVector     `json:"features,omitempty"`
}

// StoreStatus reports backend reachability and key population.
type StoreStatus struct {
	Backend   string           `json:"backend"`
	Reachable bool             `json:"reachable"`
	Error     string           `json:"error,omitempty"`
	Keys      map[string]int64 `json:"keys,omitempty"`
}
