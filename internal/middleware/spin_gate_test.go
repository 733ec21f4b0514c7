package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpinPull/internal/domain/models"
	"SpinPull/pkg/util"
)

type fakeProc struct {
	calls []int64
	err   error
}

func (f *fakeProc) ProcessSpin(_ context.Context, n int, ts *int64) (*models.SpinOutcome, error) {
	f.calls = append(f.calls, *ts)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SpinOutcome{Ingest: models.IngestResult{Spin: models.NewSpin(n, *ts)}}, nil
}

func at(ts int64) *int64 { return &ts }

func newGate(p Proc, clock util.Clock) *SpinGate {
	return NewSpinGate(p, nil, WithMaxRPS(0), WithDedupWindow(time.Minute), WithGateClock(clock))
}

func TestSpinGateDropsRepeatsWithinWindow(t *testing.T) {
	clock := util.NewFakeClock(time.Unix(10_000, 0))
	p := &fakeProc{}
	g := newGate(p, clock)
	ctx := context.Background()

	require.NoError(t, g.Submit(ctx, 17, at(9_000)))
	require.NoError(t, g.Submit(ctx, 17, at(9_000)))
	require.NoError(t, g.Submit(ctx, 17, at(9_001)))
	assert.Equal(t, []int64{9_000, 9_001}, p.calls)

	clock.Advance(2 * time.Minute)
	require.NoError(t, g.Submit(ctx, 17, at(9_000)))
	assert.Len(t, p.calls, 3)
}

func TestSpinGateForgetsFailedSpins(t *testing.T) {
	clock := util.NewFakeClock(time.Unix(10_000, 0))
	p := &fakeProc{err: models.ErrStoreUnavailable}
	g := newGate(p, clock)
	ctx := context.Background()

	err := g.Submit(ctx, 5, at(9_000))
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)

	p.err = nil
	require.NoError(t, g.Submit(ctx, 5, at(9_000)))
	assert.Len(t, p.calls, 2, "a failed spin must be retryable")
}

func TestSpinGateValidates(t *testing.T) {
	g := newGate(&fakeProc{}, util.NewFakeClock(time.Unix(0, 0)))
	err := g.Submit(context.Background(), 37, at(1))
	assert.True(t, errors.Is(err, models.ErrValidation))
	err = g.Submit(context.Background(), 3, at(-1))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestSpinGateStampsMissingTimestamp(t *testing.T) {
	clock := util.NewFakeClock(time.Unix(12_345, 0))
	p := &fakeProc{}
	g := newGate(p, clock)
	require.NoError(t, g.Submit(context.Background(), 0, nil))
	require.NoError(t, g.Submit(context.Background(), 0, at(12_345_000)))
	assert.Equal(t, []int64{12_345}, p.calls, "millisecond ts normalises onto the stamped second")
}

func TestSpinGateKeepsZeroTimestamp(t *testing.T) {
	clock := util.NewFakeClock(time.Unix(12_345, 0))
	p := &fakeProc{}
	g := newGate(p, clock)
	require.NoError(t, g.Submit(context.Background(), 4, at(0)))
	require.NoError(t, g.Submit(context.Background(), 4, at(0)))
	require.NoError(t, g.Submit(context.Background(), 4, nil))
	assert.Equal(t, []int64{0, 12_345}, p.calls)
}

func TestSpinGateThrottleHonoursContext(t *testing.T) {
	p := &fakeProc{}
	g := NewSpinGate(p, nil, WithMaxRPS(1), WithDedupWindow(time.Minute))
	require.NoError(t, g.Submit(context.Background(), 1, at(100)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.Submit(ctx, 2, at(101))
	assert.Error(t, err)
	assert.Len(t, p.calls, 1)
}
