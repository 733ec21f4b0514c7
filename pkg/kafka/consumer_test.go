package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyHandler struct {
	calls int
	fail  int
	err   error
}

func (h *flakyHandler) Topic() string { return "roulette.spins" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.fail {
		return h.err
	}
	return nil
}

func newTestConsumer(t *testing.T, retryMax int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retryMax, time.Millisecond, 2*time.Millisecond),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	return c
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
}

func TestHandleRetriesTransientErrors(t *testing.T) {
	c := newTestConsumer(t, 3)
	h := &flakyHandler{fail: 2, err: errors.New("store unavailable")}

	attempts, err := c.handleWithRetry(h, &message{topic: h.Topic(), km: kafka.Message{Value: []byte("{}")}})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestHandleGivesUpAfterRetryMax(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := &flakyHandler{fail: 10, err: errors.New("store unavailable")}

	attempts, err := c.handleWithRetry(h, &message{topic: h.Topic()})
	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	c := newTestConsumer(t, 5)
	h := &flakyHandler{fail: 10, err: Permanent(errors.New("number out of range"))}

	attempts, err := c.handleWithRetry(h, &message{topic: h.Topic()})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	var perm *PermanentError
	assert.True(t, errors.As(err, &perm))
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "roulette.spins" }
func (panicHandler) Handle(context.Context, []byte) error { panic("boom") }

func TestHandlerPanicBecomesPermanent(t *testing.T) {
	c := newTestConsumer(t, 5)
	attempts, err := c.handleWithRetry(panicHandler{}, &message{topic: "roulette.spins"})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.LessOrEqual(t, d, time.Second)
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestProducerEncodesValues(t *testing.T) {
	b, err := encodeValue(map[string]int{"number": 17})
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":17}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}
