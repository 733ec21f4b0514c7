package cache

import (
	"errors"
	"testing"
	"time"

	"SpinPull/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	clock := util.NewFakeClock(time.Unix(1000, 0))
	c := NewTTLCache(clock)

	c.Set("stats", 1, 5*time.Second)
	v, ok := c.Get("stats")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(6 * time.Second)
	_, ok = c.Get("stats")
	assert.False(t, ok)
}

func TestTTLCacheDeleteAndPurge(t *testing.T) {
	c := NewTTLCache(nil)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	c := NewTTLCache(util.NewFakeClock(time.Unix(0, 0)))
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := GetOrLoad(c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	_, _ = GetOrLoad(c, "k", time.Minute, load)
	assert.Equal(t, 1, calls)

	_, err = GetOrLoad(c, "bad", time.Minute, func() (int, error) { return 0, errors.New("down") })
	assert.Error(t, err)
	_, ok := c.Get("bad")
	assert.False(t, ok)
}
