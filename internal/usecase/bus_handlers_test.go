package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpinPull/internal/domain/models"
	pkgkafka "SpinPull/pkg/kafka"
	"SpinPull/pkg/metrics"
)

type submitCall struct {
	n     int
	ts    int64
	hasTS bool
}

type fakeGate struct {
	calls []submitCall
	err   error
}

func (g *fakeGate) Submit(_ context.Context, n int, ts *int64) error {
	c := submitCall{n: n}
	if ts != nil {
		c.ts, c.hasTS = *ts, true
	}
	g.calls = append(g.calls, c)
	return g.err
}

func TestKafkaSpinsHandler(t *testing.T) {
	gate := &fakeGate{}
	h := NewKafkaSpinsHandler("roulette.spins", gate, metrics.NewWithRegisterer(prometheus.NewRegistry()))
	ctx := context.Background()
	assert.Equal(t, "roulette.spins", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"number":0,"timestamp":1750000000123}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"number":3,"timestamp":0}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"number":5}`)))
	assert.Equal(t, []submitCall{
		{n: 0, ts: 1750000000123, hasTS: true},
		{n: 3, ts: 0, hasTS: true},
		{n: 5},
	}, gate.calls)

	var perm *pkgkafka.PermanentError
	err := h.Handle(ctx, []byte(`not json`))
	assert.True(t, errors.As(err, &perm))

	err = h.Handle(ctx, []byte(`{"timestamp":1}`))
	assert.True(t, errors.As(err, &perm))
	assert.ErrorIs(t, err, models.ErrValidation)

	gate.err = models.NewValidationError("number", "out of range")
	err = h.Handle(ctx, []byte(`{"number":40}`))
	assert.True(t, errors.As(err, &perm))

	gate.err = models.ErrStoreUnavailable
	err = h.Handle(ctx, []byte(`{"number":4}`))
	assert.False(t, errors.As(err, &perm), "transient failures are retried")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestSpinIngestJob(t *testing.T) {
	gate := &fakeGate{}
	j := NewSpinIngestJob(gate, nil)
	ctx := context.Background()
	assert.Equal(t, SpinIngestJobType, j.Type())

	payload, _ := json.Marshal(map[string]int{"number": 12, "timestamp": 900})
	require.NoError(t, j.Handle(ctx, payload))
	assert.Equal(t, []submitCall{{n: 12, ts: 900, hasTS: true}}, gate.calls)

	assert.NoError(t, j.Handle(ctx, json.RawMessage(`{"timestamp":5}`)), "invalid spins are acknowledged")
	assert.NoError(t, j.Handle(ctx, nil))
	assert.Len(t, gate.calls, 1)

	gate.err = models.ErrDeadlineExceeded
	assert.ErrorIs(t, j.Handle(ctx, payload), models.ErrDeadlineExceeded)
}
