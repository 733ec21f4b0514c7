package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
)

func TestNumbersAndLatest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.query.Latest(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound)

	h.ingest(t, 1000, 0, 32, 15)
	spins, total, err := h.query.Numbers(ctx, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, spins, 2)
	assert.Equal(t, 15, spins[0].Number)
	assert.Equal(t, wheel.Black, spins[0].Color)
	assert.EqualValues(t, 1002, spins[0].Timestamp)
	assert.Equal(t, 32, spins[1].Number)
	assert.EqualValues(t, 1001, spins[1].Timestamp)

	page, _, err := h.query.Numbers(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, wheel.Green, page[0].Color)
	assert.EqualValues(t, 1000, page[0].Timestamp)

	latest, err := h.query.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, latest.Number)
	assert.EqualValues(t, 1002, latest.Timestamp)
}

func TestNumbersKeepIngestTimestampsOutOfOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ingest(t, 2000, 8)
	h.ingest(t, 1500, 9)
	h.ingest(t, 0, 10)

	spins, _, err := h.query.Numbers(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, spins, 3)
	assert.Equal(t, []int{10, 9, 8}, []int{spins[0].Number, spins[1].Number, spins[2].Number})
	assert.Equal(t, []int64{0, 1500, 2000}, []int64{spins[0].Timestamp, spins[1].Timestamp, spins[2].Timestamp})
}

func TestAnalyticsReportWithoutSpins(t *testing.T) {
	h := newHarness(t)
	rep, err := h.query.Analytics(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.ZeroProtection.Active)
	assert.Equal(t, -1, rep.ZeroProtection.Position)
}

func TestAnalyticsReport(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, 1000, 7, 7, 7, 18, 0)

	rep, err := h.query.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, rep.HotCold.Hot[0])
	assert.Equal(t, 3, rep.HotCold.Frequencies[7])
	assert.Equal(t, models.Streak{Color: wheel.Green, Length: 1}, rep.Streaks.Current)
	assert.Len(t, rep.Rolling, 3)
	assert.True(t, rep.ZeroProtection.Active, "zero sits at position 0")
	assert.Equal(t, 0, rep.ZeroProtection.Position)
}

func TestFeaturesAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ingest(t, 1000, 1, 2, 3, 4, 5, 6, 7)

	recs, err := h.query.Features(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 7, recs[0].Target)

	st := h.query.Status(ctx)
	assert.True(t, st.Reachable)
	assert.Equal(t, "memory", st.Backend)
	assert.Positive(t, st.Keys["roulette"])
}
