package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With("ingest")

	l.Info("spin committed",
		Int("number", 17),
		String("color", "black"),
		Float64("confidence", 0.5),
		Duration("elapsed_ms", 1500*time.Millisecond),
		Bool("out_of_order", false))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "spin committed", got["message"])
	assert.Equal(t, "ingest", got["component"])
	assert.EqualValues(t, 17, got["number"])
	assert.EqualValues(t, 1500, got["elapsed_ms"])
	assert.Equal(t, 0.5, got["confidence"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches int
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches++
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batches
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "spinpull.logs", Publisher: pub})
	defer l.RemoveCollector()

	l.Error("commit failed", Error(errors.New("a")))
	l.Error("commit failed", Error(errors.New("a")))
	l.Error("publish failed", Error(errors.New("b")))

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "spinpull.logs", pub.topic)
}
