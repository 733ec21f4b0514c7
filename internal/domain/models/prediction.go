package models

import "fmt"

type PredictorType string

const (
	PredictorHeuristic PredictorType = "heuristic"
	PredictorEnsemble  PredictorType = "ensemble"
	PredictorXGBoost   PredictorType = "xgboost"
)

func ParsePredictorType(s string) (PredictorType, error) {
	switch t := PredictorType(s); t {
	case PredictorHeuristic, PredictorEnsemble, PredictorXGBoost:
		return t, nil
	}
	return "", NewValidationError("type", "unknown predictor type %q", s)
}

// PredictionMode selects which group becomes the predicted main set.
type PredictionMode string

const (
	ModeGroups     PredictionMode = "groups"
	ModeIndividual PredictionMode = "individual"
	ModeSector     PredictionMode = "sector"
	ModeColor      PredictionMode = "color"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
)

// GroupSizes are the produced group sizes, largest first.
var GroupSizes = []int{20, 15, 12, 9, 6, 4}

func GroupName(size int) string { return fmt.Sprintf("group_%d", size) }

// Groups holds the six nested candidate sets.
type Groups struct {
	G20 []int `json:"group_20"`
	G15 []int `json:"group_15"`
	G12 []int `json:"group_12"`
	G9  []int `json:"group_9"`
	G6  []int `json:"group_6"`
	G4  []int `json:"group_4"`
}

func (g *Groups) slot(size int) *[]int {
	switch size {
	case 20:
		return &g.G20
	case 15:
		return &g.G15
	case 12:
		return &g.G12
	case 9:
		return &g.G9
	case 6:
		return &g.G6
	case 4:
		return &g.G4
	}
	return nil
}

// Get returns the group of the given size, or nil for an unknown size.
func (g *Groups) Get(size int) []int {
	if s := g.slot(size); s != nil {
		return *s
	}
	return nil
}

func (g *Groups) Set(size int, members []int) {
	if s := g.slot(size); s != nil {
		*s = members
	}
}

// Validate checks sizes, range and uniqueness of every group.
func (g *Groups) Validate() error {
	for _, size := range GroupSizes {
		members := g.Get(size)
		if len(members) != size {
			return fmt.Errorf("%s has %d members", GroupName(size), len(members))
		}
		var seen [37]bool
		for _, n := range members {
			if n < 0 || n > 36 {
				return fmt.Errorf("%s contains %d", GroupName(size), n)
			}
			if seen[n] {
				return fmt.Errorf("%s repeats %d", GroupName(size), n)
			}
			seen[n] = true
		}
	}
	return nil
}

// Prediction is a registered set of candidate groups awaiting the next spin.
type Prediction struct {
	ID             string         `json:"prediction_id"`
	CreatedAt      int64          `json:"created_at"`
	LastNumber     int            `json:"last_number"`
	Groups         Groups         `json:"groups"`
	PredictedMain  []int          `json:"predicted_main"`
	Type           PredictorType  `json:"type"`
	Mode           PredictionMode `json:"mode"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	Status         Status         `json:"status"`
	ZeroProtection bool           `json:"zero_protection"`
	ActualNumber   *int           `json:"actual_number,omitempty"`
	VerifiedAt     int64          `json:"verified_at,omitempty"`
}

type GroupOutcome struct {
	Name     string `json:"name"`
	IsWinner bool   `json:"is_winner"`
	Size     int    `json:"size"`
}

// VerificationResult is the outcome of checking one prediction against a spin.
// Error is set when the prediction could not be verified; counters are untouched then.
type VerificationResult struct {
	PredictionID      string         `json:"prediction_id"`
	ActualNumber      int            `json:"actual_number"`
	OverallWinner     bool           `json:"overall_winner"`
	PerGroup          []GroupOutcome `json:"per_group"`
	WinningGroupCount int            `json:"winning_group_count"`
	TotalGroups       int            `json:"total_groups"`
	VerifiedAt        int64          `json:"verified_at,omitempty"`
	ExpiresIn         int64          `json:"expires_in,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// Evaluate scores every group of p against the actual number n.
func Evaluate(p *Prediction, n int) VerificationResult {
	res := VerificationResult{PredictionID: p.ID, ActualNumber: n}
	for _, size := range GroupSizes {
		members := p.Groups.Get(size)
		if members == nil {
			continue
		}
		win := false
		for _, m := range members {
			if m == n {
				win = true
				break
			}
		}
		res.PerGroup = append(res.PerGroup, GroupOutcome{Name: GroupName(size), IsWinner: win, Size: len(members)})
		if win {
			res.WinningGroupCount++
		}
	}
	res.TotalGroups = len(res.PerGroup)
	res.OverallWinner = res.WinningGroupCount > 0
	return res
}

type GameStats struct {
	TotalPredictions int64   `json:"total_predictions"`
	TotalWins        int64   `json:"total_wins"`
	TotalLosses      int64   `json:"total_losses"`
	WinRate          float64 `json:"win_rate"`
}

type GroupStats struct {
	Group   string  `json:"group"`
	Total   int64   `json:"total"`
	Wins    int64   `json:"wins"`
	Losses  int64   `json:"losses"`
	WinRate float64 `json:"win_rate"`
}

// AIStats is the prediction performance view.
type AIStats struct {
	Game     GameStats     `json:"game_stats"`
	Groups   []GroupStats  `json:"group_stats"`
	Pending  int64         `json:"pending"`
	Detailed DetailedStats `json:"detailed"`
}

// WinRate returns wins/total, or 0 when nothing was counted.
func WinRate(wins, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(wins) / float64(total)
}
