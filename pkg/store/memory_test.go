package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(now *time.Time) *MemoryStore {
	return NewMemoryStore(
		WithMemoryCleanup(0),
		WithMemoryClock(func() time.Time { return *now }),
	)
}

func TestMemoryCommitAppliesAllOps(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestMemory(&now)
	ctx := context.Background()

	err := s.Commit(ctx,
		LPush("history", "17"),
		LPush("history", "3"),
		LTrim("history", 0, 199),
		Set("latest", "3"),
		Incr("total"),
		Incr("total"),
		HSet("meta", map[string]string{"a": "1"}),
		HIncrBy("meta", "hits", 5),
		ZAdd("timeline", 1000, "17:1"),
		ZAdd("timeline", 1001, "3:2"),
	)
	require.NoError(t, err)

	hist, err := s.LRange(ctx, "history", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "17"}, hist)

	latest, err := s.Get(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, "3", latest)

	total, err := s.Get(ctx, "total")
	require.NoError(t, err)
	assert.Equal(t, "2", total)

	meta, err := s.HGetAll(ctx, "meta")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "hits": "5"}, meta)

	zs, err := s.ZRangeByScore(ctx, "timeline", 1001, 2000)
	require.NoError(t, err)
	assert.Equal(t, []Z{{Score: 1001, Member: "3:2"}}, zs)

	rev, err := s.ZRevRange(ctx, "timeline", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "3:2", rev[0].Member)
}

func TestMemoryCommitIsAllOrNothing(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestMemory(&now)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, Set("latest", "5"), LPush("list", "a")))

	err := s.Commit(ctx,
		Set("latest", "9"),
		Incr("counter"),
		HSet("list", map[string]string{"x": "y"}),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongType))

	latest, err := s.Get(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, "5", latest)

	_, err = s.Get(ctx, "counter")
	assert.ErrorIs(t, err, ErrNil)
}

func TestMemoryCommitHonoursExpiredContext(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestMemory(&now)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := s.Commit(ctx, Set("k", "v"))
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
	n, err := s.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryTrimRemAndRanks(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestMemory(&now)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, LPush("l", "a", "b", "a", "c")))
	l, _ := s.LRange(ctx, "l", 0, -1)
	assert.Equal(t, []string{"c", "a", "b", "a"}, l)

	require.NoError(t, s.Commit(ctx, LRem("l", 0, "a")))
	l, _ = s.LRange(ctx, "l", 0, -1)
	assert.Equal(t, []string{"c", "b"}, l)

	require.NoError(t, s.Commit(ctx, LTrim("l", 0, 0)))
	n, _ := s.LLen(ctx, "l")
	assert.EqualValues(t, 1, n)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Commit(ctx, ZAdd("z", float64(i), string(rune('a'+i)))))
	}
	require.NoError(t, s.Commit(ctx, ZRemRangeByRank("z", 0, -4)))
	card, _ := s.ZCard(ctx, "z")
	assert.EqualValues(t, 3, card)
	zs, _ := s.ZRangeByScore(ctx, "z", 0, 10)
	assert.Equal(t, "c", zs[0].Member)
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestMemory(&now)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx,
		HSet("result:1", map[string]string{"ok": "1"}),
		Expire("result:1", 7*24*time.Hour),
	))
	ttl, err := s.TTL(ctx, "result:1")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, ttl)

	ttl, _ = s.TTL(ctx, "missing")
	assert.Equal(t, TTLMissing, ttl)

	now = now.Add(7*24*time.Hour + time.Second)
	got, err := s.HGetAll(ctx, "result:1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryLocksAndPatterns(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newTestMemory(&now)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "lock", "a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.TryLock(ctx, "lock", "b", time.Second)
	assert.False(t, ok)
	released, _ := s.Unlock(ctx, "lock", "b")
	assert.False(t, released)

	extended, _ := s.Extend(ctx, "lock", "b", time.Minute)
	assert.False(t, extended)
	extended, _ = s.Extend(ctx, "lock", "a", time.Minute)
	assert.True(t, extended)
	now = now.Add(30 * time.Second)
	ok, _ = s.TryLock(ctx, "lock", "b", time.Second)
	assert.False(t, ok, "extended lease outlives the original ttl")

	released, _ = s.Unlock(ctx, "lock", "a")
	assert.True(t, released)

	require.NoError(t, s.Commit(ctx, Set("prediction:1", "x"), Set("prediction:2", "y"), Set("other", "z")))
	keys, err := s.Keys(ctx, "prediction:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"prediction:1", "prediction:2"}, keys)

	n, err := s.DeleteByPattern(ctx, "prediction:*")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	left, _ := s.Exists(ctx, "other", "prediction:1")
	assert.EqualValues(t, 1, left)
}
