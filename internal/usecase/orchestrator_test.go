package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/wheel"
	"SpinPull/pkg/store"
	"SpinPull/pkg/util"
)

func TestProcessFirstSpin(t *testing.T) {
	h := newHarness(t)
	out, err := h.orch.ProcessSpin(context.Background(), 17, at(1000))
	require.NoError(t, err)

	assert.Equal(t, 17, out.Ingest.Spin.Number)
	assert.Zero(t, out.VerifiedCount)
	assert.Empty(t, out.Verified)
	require.NotNil(t, out.NewPrediction)
	p := out.NewPrediction
	require.NoError(t, p.Groups.Validate())
	assert.Equal(t, 17, p.LastNumber)
	assert.GreaterOrEqual(t, p.Confidence, 0.4)
	assert.LessOrEqual(t, p.Confidence, 0.88)
	assert.Equal(t, p.Groups.G6, p.PredictedMain)

	n, err := h.repo.PendingCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.Len(t, h.pub.spins, 1)
	assert.Len(t, h.pub.predictions, 1)
	assert.Equal(t, []string{EventSpin}, h.hub.events)
}

func TestVerificationPrecedesIngestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.orch.ProcessSpin(ctx, 17, at(1000))
	require.NoError(t, err)

	second, err := h.orch.ProcessSpin(ctx, 4, at(1001))
	require.NoError(t, err)
	assert.Equal(t, 1, second.VerifiedCount)
	require.Len(t, second.Verified, 1)
	assert.Equal(t, first.NewPrediction.ID, second.Verified[0].PredictionID)
	assert.Equal(t, 4, second.Verified[0].ActualNumber)

	gs := h.gameStats(t)
	assert.EqualValues(t, 1, gs.TotalPredictions)
	assert.EqualValues(t, 2, h.counters(t).TotalSpins)

	pending, err := h.repo.PendingIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.NewPrediction.ID}, pending)
}

func TestZeroProtectionActivation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seed := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	h.ingest(t, 1000, seed...)

	out, err := h.orch.ProcessSpin(ctx, 21, at(2000))
	require.NoError(t, err)
	require.NotNil(t, out.NewPrediction)
	assert.True(t, out.NewPrediction.ZeroProtection)
	for _, size := range models.GroupSizes {
		assert.Contains(t, out.NewPrediction.Groups.Get(size), 0, models.GroupName(size))
	}
}

func TestProcessSpinRejectsInvalidNumber(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.ProcessSpin(context.Background(), -1, at(1000))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, h.pub.spins)
}

func TestProcessSpinStampsMissingTimestamp(t *testing.T) {
	h := newHarness(t)
	out, err := h.orch.ProcessSpin(context.Background(), 8, nil)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Unix(), out.Ingest.Spin.Timestamp)

	out, err = h.orch.ProcessSpin(context.Background(), 9, at(0))
	require.NoError(t, err)
	assert.Zero(t, out.Ingest.Spin.Timestamp)
	assert.True(t, out.Ingest.OutOfOrder)
}

func TestProcessSpinRejectsNegativeTimestampBeforeVerifying(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, err := h.orch.ProcessSpin(ctx, 17, at(1000))
	require.NoError(t, err)
	require.NotNil(t, first.NewPrediction)

	_, err = h.orch.ProcessSpin(ctx, 4, at(-5))
	require.ErrorIs(t, err, models.ErrValidation)

	ids, err := h.repo.PendingIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, first.NewPrediction.ID)
	assert.Zero(t, h.gameStats(t).TotalPredictions)
}

func TestPublishFailureDoesNotFailSpin(t *testing.T) {
	h := newHarness(t)
	h.pub.err = errors.New("broker down")
	out, err := h.orch.ProcessSpin(context.Background(), 8, at(1000))
	require.NoError(t, err)
	assert.True(t, out.Ingest.Committed)
}

func TestProcessSpinSurfacesStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	st := store.NewRedisStoreFromClient(client, "", time.Second)
	t.Cleanup(func() { _ = st.Close() })
	h := newHarnessWithStore(t, st, util.NewFakeClock(time.Unix(1_750_000_000, 0)))

	_, err := h.orch.ProcessSpin(context.Background(), 8, at(1000))
	require.NoError(t, err)

	mr.Close()
	_, err = h.orch.ProcessSpin(context.Background(), 9, at(1001))
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Len(t, h.pub.spins, 1)
}

func TestConcurrentSpinsAreSerialised(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const spins = 12

	var wg sync.WaitGroup
	for i := 0; i < spins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.ProcessSpin(ctx, i, at(int64(1000+i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	c := h.counters(t)
	assert.EqualValues(t, spins, c.TotalSpins)
	gs := h.gameStats(t)
	assert.EqualValues(t, spins-1, gs.TotalPredictions)
	assert.Equal(t, gs.TotalPredictions, gs.TotalWins+gs.TotalLosses)

	pending, err := h.repo.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
}

func TestStandalonePredict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.orch.Predict(ctx, models.ModeIndividual)
	require.NoError(t, err)
	assert.Nil(t, p, "abstains without history")

	_, err = h.orch.Predict(ctx, "lottery")
	assert.ErrorIs(t, err, models.ErrValidation)

	h.ingest(t, 1000, 3, 14, 27)
	p, err = h.orch.Predict(ctx, models.ModeIndividual)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, p.Groups.G4, p.PredictedMain)
	assert.EqualValues(t, 3, h.counters(t).TotalSpins, "predict does not ingest")

	sector, err := h.orch.Predict(ctx, models.ModeSector)
	require.NoError(t, err)
	for _, n := range sector.PredictedMain {
		assert.Contains(t, sector.Groups.G20, n)
	}

	n, err := h.repo.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCheckResultAndPurge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out, err := h.orch.ProcessSpin(ctx, 17, at(1000))
	require.NoError(t, err)

	res, err := h.orch.CheckResult(ctx, out.NewPrediction.ID, 17)
	require.NoError(t, err)
	assert.Equal(t, out.NewPrediction.ID, res.PredictionID)
	assert.Contains(t, h.hub.events, EventVerification)

	_, err = h.orch.CheckResult(ctx, out.NewPrediction.ID, 17)
	assert.ErrorIs(t, err, models.ErrAlreadyVerified)

	deleted, err := h.orch.PurgePredictions(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, deleted)
	assert.Zero(t, h.gameStats(t).TotalPredictions)
	_, err = h.reg.Get(ctx, out.NewPrediction.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.EqualValues(t, 1, h.counters(t).TotalSpins, "spin history survives a purge")
}

func TestStatsCacheIsInvalidatedPerSpin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.orch.ProcessSpin(ctx, 1, at(1000))
	require.NoError(t, err)

	st, err := h.query.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.TotalSpins)
	assert.Equal(t, 100.0, st.ColorPercentages[string(wheel.Red)])

	_, err = h.orch.ProcessSpin(ctx, 2, at(1001))
	require.NoError(t, err)
	st, err = h.query.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalSpins)
	require.NotNil(t, st.Latest)
	assert.Equal(t, 2, *st.Latest)
	assert.Equal(t, 2, st.Detailed.Sample)
}
