package analytics

import (
	"sort"
	"strconv"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
)

// Pattern queries over committed state. Every function here is pure.

const (
	DefaultHotPrefix   = 60
	DefaultHotCount    = 12
	DefaultColdCount   = 8
	DefaultColorWindow = 15
	StreakWindow       = 50
	ZeroWindow         = 20
)

// HotCold ranks numbers by frequency over the first prefix entries of history.
// Ties keep the order of first appearance (newest first). Only numbers that
// appear are ranked; cold is the tail of the ranking.
func HotCold(history []int, hotK, coldK, prefix int) models.HotCold {
	if prefix <= 0 || prefix > len(history) {
		prefix = len(history)
	}
	freq := make(map[int]int)
	order := make([]int, 0, wheel.Size)
	for _, n := range history[:prefix] {
		if freq[n] == 0 {
			order = append(order, n)
		}
		freq[n]++
	}
	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })

	hc := models.HotCold{Frequencies: freq}
	hc.Hot = append([]int{}, order[:min(hotK, len(order))]...)
	hc.Cold = append([]int{}, order[len(order)-min(coldK, len(order)):]...)
	return hc
}

// ColorsOf maps spins to colours, preserving order.
func ColorsOf(history []int) []wheel.Color {
	out := make([]wheel.Color, len(history))
	for i, n := range history {
		out[i] = wheel.ColorOf(n)
	}
	return out
}

// ColorProbabilities returns inverse-frequency scores over the last m colours,
// in fixed colour order. With fewer than m colours available the available
// count is used as the denominator. An empty input yields nil.
func ColorProbabilities(colors []wheel.Color, m int) []models.ColorProbability {
	if m <= 0 || m > len(colors) {
		m = len(colors)
	}
	if m == 0 {
		return nil
	}
	counts := make(map[wheel.Color]int, len(wheel.Colors))
	for _, c := range colors[:m] {
		counts[c]++
	}
	out := make([]models.ColorProbability, 0, len(wheel.Colors))
	for _, c := range wheel.Colors {
		out = append(out, models.ColorProbability{
			Color:       c,
			Count:       counts[c],
			Probability: 1 - float64(counts[c])/float64(m),
		})
	}
	return out
}

// BestColor returns the colour with the highest score; the first wins ties.
func BestColor(probs []models.ColorProbability) (models.ColorProbability, bool) {
	if len(probs) == 0 {
		return models.ColorProbability{}, false
	}
	best := probs[0]
	for _, p := range probs[1:] {
		if p.Probability > best.Probability {
			best = p
		}
	}
	return best, true
}

// OptimalSector is the sector with the lowest cumulative count.
func OptimalSector(counts map[wheel.Sector]int64) wheel.Sector {
	best := wheel.Sectors[0]
	for _, s := range wheel.Sectors[1:] {
		if counts[s] < counts[best] {
			best = s
		}
	}
	return best
}

// ColorStreaks reports the run at the head of colors and the longest run per
// colour, over the first StreakWindow entries.
func ColorStreaks(colors []wheel.Color) models.ColorStreaks {
	if len(colors) > StreakWindow {
		colors = colors[:StreakWindow]
	}
	cs := models.ColorStreaks{MaxPerColor: make(map[wheel.Color]int64, len(wheel.Colors))}
	for _, c := range wheel.Colors {
		cs.MaxPerColor[c] = 0
	}
	var run int64
	for i, c := range colors {
		if i > 0 && c == colors[i-1] {
			run++
		} else {
			run = 1
		}
		if run > cs.MaxPerColor[c] {
			cs.MaxPerColor[c] = run
		}
		if i == 0 || (cs.Current.Color == c && cs.Current.Length == int64(i)) {
			cs.Current = models.Streak{Color: c, Length: run}
		}
	}
	return cs
}

// ZeroProtection locates the nearest zero in the last ZeroWindow spins.
// Position is -1 when zero is absent. An empty history is never protected.
func ZeroProtection(history []int) models.ZeroProtection {
	if len(history) == 0 {
		return models.ZeroProtection{Position: -1}
	}
	if len(history) > ZeroWindow {
		history = history[:ZeroWindow]
	}
	zp := models.ZeroProtection{Position: -1, Active: true}
	for i, n := range history {
		if n == 0 {
			zp.Position = i
			zp.Active = i <= 2 || i >= 15
			break
		}
	}
	return zp
}

// DetailedStats splits the history by dozen, column, parity and colour.
func DetailedStats(history []int) models.DetailedStats {
	ds := models.DetailedStats{
		Sample:  len(history),
		Dozens:  map[string]int{"zero": 0, "1": 0, "2": 0, "3": 0},
		Columns: map[string]int{"zero": 0, "1": 0, "2": 0, "3": 0},
		Parity:  map[string]int{},
		Colors:  map[string]int{},
	}
	for _, p := range []wheel.Parity{wheel.Even, wheel.Odd, wheel.Zero} {
		ds.Parity[string(p)] = 0
	}
	for _, c := range wheel.Colors {
		ds.Colors[string(c)] = 0
	}
	for _, n := range history {
		ds.Dozens[tableKey(wheel.DozenOf(n))]++
		ds.Columns[tableKey(wheel.ColumnOf(n))]++
		ds.Parity[string(wheel.ParityOf(n))]++
		ds.Colors[string(wheel.ColorOf(n))]++
	}
	return ds
}

func tableKey(i int) string {
	if i == 0 {
		return "zero"
	}
	return strconv.Itoa(i)
}

// Report bundles every pattern query over one snapshot.
func Report(s *models.Snapshot, rolling []models.RollingWindow) models.PatternReport {
	colors := s.Colors
	if len(colors) == 0 {
		colors = ColorsOf(s.History)
	}
	return models.PatternReport{
		HotCold:            HotCold(s.History, DefaultHotCount, DefaultColdCount, DefaultHotPrefix),
		ColorProbabilities: ColorProbabilities(colors, DefaultColorWindow),
		OptimalSector:      OptimalSector(s.SectorCounts),
		Streaks:            ColorStreaks(colors),
		ZeroProtection:     ZeroProtection(s.History),
		Rolling:            rolling,
		Features:           s.Features,
	}
}
