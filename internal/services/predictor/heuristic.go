package predictor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"SpinPull/internal/domain/models"
	domsvc "SpinPull/internal/domain/service"
	"SpinPull/internal/domain/wheel"
	"SpinPull/internal/services/analytics"
)

const (
	maxConfidence = 0.88
	qualitySpins  = 50.0
)

// HeuristicOption configures Heuristic.
type HeuristicOption func(*HeuristicConfig)

type HeuristicConfig struct {
	Seed          int64
	HistoryWindow int
	ColorWindow   int
}

func WithSeed(seed int64) HeuristicOption {
	return func(c *HeuristicConfig) { c.Seed = seed }
}

func WithHistoryWindow(n int) HeuristicOption {
	return func(c *HeuristicConfig) {
		if n > 0 {
			c.HistoryWindow = n
		}
	}
}

func WithColorWindow(n int) HeuristicOption {
	return func(c *HeuristicConfig) {
		if n > 0 {
			c.ColorWindow = n
		}
	}
}

// Heuristic builds the six nested groups from hot/cold numbers, the optimal
// sector and colour balance. Output is deterministic for a given seed and
// sequence of snapshots.
type Heuristic struct {
	cfg HeuristicConfig
	mu  sync.Mutex
	rng *rand.Rand
}

func NewHeuristic(opts ...HeuristicOption) *Heuristic {
	cfg := HeuristicConfig{
		HistoryWindow: analytics.DefaultHotPrefix,
		ColorWindow:   analytics.DefaultColorWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Heuristic{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func (h *Heuristic) Type() models.PredictorType { return models.PredictorHeuristic }

// analysis is everything the recipes draw from.
type analysis struct {
	hot       []int
	cold      []int
	sector    wheel.Sector
	sectorNum []int
	best      models.ColorProbability
	hasBest   bool
	bestNums  []int
	zero      models.ZeroProtection
	quality   float64
}

func (h *Heuristic) analyse(snap *models.Snapshot) analysis {
	hist := snap.History
	if len(hist) > h.cfg.HistoryWindow {
		hist = hist[:h.cfg.HistoryWindow]
	}
	hc := analytics.HotCold(hist, analytics.DefaultHotCount, analytics.DefaultColdCount, h.cfg.HistoryWindow)
	colors := snap.Colors
	if len(colors) == 0 {
		colors = analytics.ColorsOf(hist)
	}
	a := analysis{
		hot:    hc.Hot,
		cold:   hc.Cold,
		sector: analytics.OptimalSector(snap.SectorCounts),
		zero:   analytics.ZeroProtection(hist),
	}
	a.sectorNum = wheel.SectorMembers(a.sector)
	a.best, a.hasBest = analytics.BestColor(analytics.ColorProbabilities(colors, h.cfg.ColorWindow))
	if a.hasBest {
		a.bestNums = wheel.NumbersOf(a.best.Color)
	}
	a.quality = float64(len(snap.History)) / qualitySpins
	if a.quality > 1 {
		a.quality = 1
	}
	return a
}

// Predict implements domsvc.Predictor.
func (h *Heuristic) Predict(ctx context.Context, snap *models.Snapshot, mode models.PredictionMode) (*models.Prediction, error) {
	if snap == nil || len(snap.History) == 0 || snap.Latest == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := h.analyse(snap)

	h.mu.Lock()
	groups, reasons := h.build(a)
	h.mu.Unlock()

	if err := groups.Validate(); err != nil {
		return nil, &models.InvariantError{What: err.Error(), Record: groups}
	}

	p := &models.Prediction{
		LastNumber:     *snap.Latest,
		Groups:         groups,
		Type:           models.PredictorHeuristic,
		Mode:           mode,
		Confidence:     confidence(a),
		Reasoning:      strings.Join(reasons, " | "),
		Status:         models.StatusPending,
		ZeroProtection: a.zero.Active,
	}
	p.PredictedMain = PredictedMain(&groups, mode, a.sectorNum, a.bestNums)
	return p, nil
}

func confidence(a analysis) float64 {
	c := 0.4
	c += min(0.2, 0.015*float64(len(a.hot)))
	c += 0.15 * a.quality
	if a.zero.Active {
		c += 0.08
	}
	if a.hasBest {
		c += 0.1 * a.best.Probability
	}
	return min(maxConfidence, c)
}

// build runs the six recipes. Callers hold h.mu.
func (h *Heuristic) build(a analysis) (models.Groups, []string) {
	var g models.Groups
	reasons := make([]string, 0, len(models.GroupSizes))
	finish := func(b *group, size int, label string) {
		protected := h.finish(b, size, a.zero.Active)
		g.Set(size, b.members)
		reasons = append(reasons, rationale(size, label, protected))
	}

	b := newGroup()
	b.addAll(h.sample(a.hot, 10))
	b.addAll(h.sample(b.without(a.cold), 3))
	b.addAll(h.sample(b.without(a.sectorNum), 4))
	b.addAll(h.sample(b.without(a.bestNums), 3))
	finish(b, 20, fmt.Sprintf("balanced hot/cold, sector %s, colour %s", a.sector, a.best.Color))

	b = newGroup()
	b.addAll(head(a.hot, 10))
	b.addAll(h.sample(b.without(a.sectorNum), 4))
	finish(b, 15, fmt.Sprintf("hot + sector %s", a.sector))

	b = newGroup()
	b.addAll(head(a.hot, 9))
	b.addAll(h.sample(b.without(a.bestNums), 2))
	finish(b, 12, fmt.Sprintf("selective hot + colour %s", a.best.Color))

	b = newGroup()
	b.addAll(head(a.hot, 7))
	b.addAll(h.sample(b.without(a.cold), 1))
	finish(b, 9, "hot with cold contrast")

	b = newGroup()
	b.addAll(head(a.hot, 5))
	finish(b, 6, "top hot")

	b = newGroup()
	b.addAll(head(a.hot, 3))
	finish(b, 4, "strongest hot")

	return g, reasons
}

// finish fills to size-1, applies zero-protection, then fills to size.
// It reports whether zero-protection forced 0 into the group.
func (h *Heuristic) finish(b *group, size int, protect bool) bool {
	h.fill(b, size-1)
	forced := false
	if protect && !b.has(0) && len(b.members) > 0 {
		b.replace(h.rng.Intn(len(b.members)), 0)
		forced = true
	}
	h.fill(b, size)
	return forced
}

// fill draws uniformly without replacement from the numbers not yet in b.
func (h *Heuristic) fill(b *group, size int) {
	if len(b.members) >= size {
		return
	}
	remaining := make([]int, 0, wheel.Size)
	for n := wheel.Min; n <= wheel.Max; n++ {
		if !b.has(n) {
			remaining = append(remaining, n)
		}
	}
	for len(b.members) < size && len(remaining) > 0 {
		i := h.rng.Intn(len(remaining))
		b.add(remaining[i])
		remaining = append(remaining[:i], remaining[i+1:]...)
	}
}

// sample picks up to k elements of src uniformly without replacement.
func (h *Heuristic) sample(src []int, k int) []int {
	if k > len(src) {
		k = len(src)
	}
	if k <= 0 {
		return nil
	}
	out := make([]int, 0, k)
	for _, i := range h.rng.Perm(len(src))[:k] {
		out = append(out, src[i])
	}
	return out
}

func head(src []int, k int) []int {
	if k > len(src) {
		k = len(src)
	}
	return src[:k]
}

func rationale(size int, label string, protected bool) string {
	s := fmt.Sprintf("G%d: %s", size, label)
	if protected {
		s += " (zero-protected)"
	}
	return s
}

// PredictedMain picks the headline numbers for a mode. Sector and colour modes
// keep the members of group_20 that fall in the chosen set, falling back to
// group_4 when none do.
func PredictedMain(g *models.Groups, mode models.PredictionMode, sectorNums, colorNums []int) []int {
	pick := func(set []int) []int {
		var in [wheel.Size]bool
		for _, n := range set {
			in[n] = true
		}
		var out []int
		for _, n := range g.G20 {
			if in[n] {
				out = append(out, n)
			}
		}
		if len(out) == 0 {
			return append([]int{}, g.G4...)
		}
		return out
	}
	switch mode {
	case models.ModeGroups, "":
		return append([]int{}, g.G6...)
	case models.ModeSector:
		return pick(sectorNums)
	case models.ModeColor:
		return pick(colorNums)
	default:
		return append([]int{}, g.G4...)
	}
}

// group is an insertion-ordered set of pockets.
type group struct {
	members []int
	in      [wheel.Size]bool
}

func newGroup() *group { return &group{} }

func (g *group) has(n int) bool { return g.in[n] }

func (g *group) add(n int) {
	if !wheel.Valid(n) || g.in[n] {
		return
	}
	g.in[n] = true
	g.members = append(g.members, n)
}

func (g *group) addAll(ns []int) {
	for _, n := range ns {
		g.add(n)
	}
}

func (g *group) replace(i, n int) {
	if g.in[n] {
		return
	}
	g.in[g.members[i]] = false
	g.members[i] = n
	g.in[n] = true
}

// without returns the elements of src not yet in the group.
func (g *group) without(src []int) []int {
	out := make([]int, 0, len(src))
	for _, n := range src {
		if !g.in[n] {
			out = append(out, n)
		}
	}
	return out
}

var _ domsvc.Predictor = (*Heuristic)(nil)
