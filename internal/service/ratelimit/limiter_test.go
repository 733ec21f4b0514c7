package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(2, 1, WithClock(func() time.Time { return now }))

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k"))
	}
}

func TestLimiterSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(1, 1, WithClock(func() time.Time { return now }))
	l.Allow("old")
	now = now.Add(10 * time.Minute)
	l.Allow("new")

	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.Len(t, l.m, 1)
}
