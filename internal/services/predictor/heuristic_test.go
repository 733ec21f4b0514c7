package predictor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
)

func snapshotOf(history []int) *models.Snapshot {
	s := &models.Snapshot{History: history, SectorCounts: map[wheel.Sector]int64{}}
	for _, n := range history {
		s.SectorCounts[wheel.SectorOf(n)]++
	}
	if len(history) > 0 {
		latest := history[0]
		s.Latest = &latest
	}
	return s
}

func assertGroupsValid(t *testing.T, g models.Groups) {
	t.Helper()
	for _, size := range models.GroupSizes {
		members := g.Get(size)
		require.Len(t, members, size, models.GroupName(size))
		seen := map[int]bool{}
		for _, n := range members {
			assert.True(t, wheel.Valid(n))
			assert.False(t, seen[n], "duplicate %d in %s", n, models.GroupName(size))
			seen[n] = true
		}
	}
}

func TestPredictAbstainsWithoutHistory(t *testing.T) {
	h := NewHeuristic(WithSeed(1))
	p, err := h.Predict(context.Background(), snapshotOf(nil), models.ModeGroups)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = h.Predict(context.Background(), &models.Snapshot{History: []int{4}}, models.ModeGroups)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPredictFirstSpin(t *testing.T) {
	h := NewHeuristic(WithSeed(7))
	p, err := h.Predict(context.Background(), snapshotOf([]int{17}), models.ModeGroups)
	require.NoError(t, err)
	require.NotNil(t, p)

	assertGroupsValid(t, p.Groups)
	assert.Equal(t, 17, p.LastNumber)
	assert.Equal(t, models.PredictorHeuristic, p.Type)
	assert.Equal(t, models.StatusPending, p.Status)
	// 0.4 + 0.015 (one hot) + 0.15*(1/50) + 0.08 (no zero) + 0.1*1.0 (red unseen)
	assert.InDelta(t, 0.598, p.Confidence, 1e-9)
	assert.True(t, p.ZeroProtection)
	assert.Equal(t, p.Groups.G6, p.PredictedMain)
	assert.Len(t, strings.Split(p.Reasoning, " | "), 6)
}

func TestZeroProtectionForcesZeroIntoEveryGroup(t *testing.T) {
	history := []int{5, 17, 32, 11, 8, 23, 10, 24, 16, 33, 1, 20, 14, 31, 9, 22, 18, 29, 7, 28}
	for seed := int64(1); seed <= 25; seed++ {
		h := NewHeuristic(WithSeed(seed))
		p, err := h.Predict(context.Background(), snapshotOf(history), models.ModeGroups)
		require.NoError(t, err)
		require.True(t, p.ZeroProtection)
		assertGroupsValid(t, p.Groups)
		for _, size := range models.GroupSizes {
			assert.Contains(t, p.Groups.Get(size), 0, "seed %d %s", seed, models.GroupName(size))
		}
	}
}

func TestTopGroupsStartFromHotNumbers(t *testing.T) {
	// zero at position 5 keeps zero-protection off
	history := []int{3, 3, 3, 26, 26, 0, 35, 12, 28, 7}
	h := NewHeuristic(WithSeed(3))
	p, err := h.Predict(context.Background(), snapshotOf(history), models.ModeIndividual)
	require.NoError(t, err)
	require.False(t, p.ZeroProtection)

	assert.Equal(t, []int{3, 26, 0}, p.Groups.G4[:3])
	assert.Equal(t, p.Groups.G4, p.PredictedMain)
	assertGroupsValid(t, p.Groups)
}

func TestPredictIsDeterministicUnderSeed(t *testing.T) {
	history := []int{1, 14, 9, 0, 22, 18, 29, 7, 28, 12, 35, 3}
	a, err := NewHeuristic(WithSeed(42)).Predict(context.Background(), snapshotOf(history), models.ModeGroups)
	require.NoError(t, err)
	b, err := NewHeuristic(WithSeed(42)).Predict(context.Background(), snapshotOf(history), models.ModeGroups)
	require.NoError(t, err)
	assert.Equal(t, a.Groups, b.Groups)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestConfidenceIsCapped(t *testing.T) {
	history := make([]int, 0, 60)
	for i := 0; i < 60; i++ {
		history = append(history, (i%36)+1)
	}
	p, err := NewHeuristic(WithSeed(9)).Predict(context.Background(), snapshotOf(history), models.ModeGroups)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Confidence, 0.88)
}

func TestPredictedMainModes(t *testing.T) {
	g := models.Groups{
		G20: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
		G6:  []int{1, 2, 3, 4, 5, 6},
		G4:  []int{1, 2, 3, 4},
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, PredictedMain(&g, models.ModeGroups, nil, nil))
	assert.Equal(t, []int{1, 2, 3, 4}, PredictedMain(&g, models.ModeIndividual, nil, nil))
	assert.Equal(t, []int{1, 6, 17, 20}, PredictedMain(&g, models.ModeSector, wheel.SectorMembers(wheel.Orphelins)[:5], nil))
	assert.Equal(t, []int{1, 2, 3, 4}, PredictedMain(&g, models.ModeColor, nil, []int{0}))
}
