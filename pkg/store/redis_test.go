package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(WithRedisURL("redis://" + mr.Addr() + "/0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisCommitAndReads(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx,
		LPush("roulette:history", "17"),
		LTrim("roulette:history", 0, 199),
		Set("roulette:latest", "17"),
		Incr("roulette:total_spins"),
		ZAdd("roulette:timeline", 1000, "17:1"),
		HSet("prediction:p1", map[string]string{"status": "pending"}),
		HIncrBy("ai:game_stats", "total_predictions", 1),
		Expire("prediction:p1", time.Hour),
	))

	hist, err := s.LRange(ctx, "roulette:history", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"17"}, hist)

	total, err := s.Get(ctx, "roulette:total_spins")
	require.NoError(t, err)
	assert.Equal(t, "1", total)

	zs, err := s.ZRangeByScore(ctx, "roulette:timeline", 0, 2000)
	require.NoError(t, err)
	assert.Equal(t, []Z{{Score: 1000, Member: "17:1"}}, zs)

	ttl, err := s.TTL(ctx, "prediction:p1")
	require.NoError(t, err)
	assert.True(t, ttl > 0)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNil)
}

func TestRedisWrongTypeIsTranslated(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, LPush("l", "a")))
	_, err := s.Get(ctx, "l")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestRedisCommitIsAllOrNothing(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, Set("latest", "5"), LPush("list", "a")))

	err := s.Commit(ctx,
		Set("latest", "9"),
		Incr("counter"),
		HSet("list", map[string]string{"x": "y"}),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongType)

	latest, err := s.Get(ctx, "latest")
	require.NoError(t, err)
	assert.Equal(t, "5", latest)
	assert.False(t, mr.Exists("counter"))
}

func TestRedisCommitLeavesCountersOnWrongType(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("roulette:history", "not a list"))

	err := s.Commit(ctx, Incr("roulette:total_spins"), LPush("roulette:history", "17"))
	require.ErrorIs(t, err, ErrWrongType)
	assert.False(t, mr.Exists("roulette:total_spins"))
}

func TestRedisCommitRejectsNonIntegerCounters(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("total", "abc"))
	mr.HSet("ai:game_stats", "total_wins", "x")

	err := s.Commit(ctx, Set("latest", "1"), IncrBy("total", 2))
	assert.ErrorIs(t, err, ErrWrongType)
	err = s.Commit(ctx, Set("latest", "1"), HIncrBy("ai:game_stats", "total_wins", 1))
	assert.ErrorIs(t, err, ErrWrongType)
	assert.False(t, mr.Exists("latest"))
}

func TestRedisCommitFollowsTypeChangesWithinBatch(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, Set("k", "v"), Set("n", "oops")))

	require.NoError(t, s.Commit(ctx,
		Del("k"),
		LPush("k", "a", "b"),
		Set("n", "4"),
		Incr("n"),
		HSet("h", map[string]string{"wins": "1"}),
		HIncrBy("h", "wins", 2),
	))

	l, err := s.LRange(ctx, "k", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, l)
	n, err := s.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, "5", n)
	h, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "3", h["wins"])
}

func TestRedisUnavailable(t *testing.T) {
	s, mr := newTestRedis(t)
	mr.Close()

	err := s.Commit(context.Background(), Set("k", "v"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRedisLockOwnership(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "roulette:lock:s1", "owner-a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "roulette:lock:s1", "owner-b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := s.Unlock(ctx, "roulette:lock:s1", "owner-b")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = s.Unlock(ctx, "roulette:lock:s1", "owner-a")
	require.NoError(t, err)
	assert.True(t, released)
}

func TestRedisLockExtendKeepsOwnership(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "roulette:lock:s1", "owner-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := s.Extend(ctx, "roulette:lock:s1", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
	assert.Equal(t, time.Second, mr.TTL("roulette:lock:s1"))

	extended, err = s.Extend(ctx, "roulette:lock:s1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, time.Minute, mr.TTL("roulette:lock:s1"))

	mr.FastForward(2 * time.Minute)
	extended, err = s.Extend(ctx, "roulette:lock:s1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended, "an expired lease cannot be revived")
}

func TestRedisPrefixAndPatternDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "spin", time.Second)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, Set("result:a", "1"), Set("result:b", "2"), Set("keep", "3")))
	assert.True(t, mr.Exists("spin:result:a"))

	keys, err := s.Keys(ctx, "result:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"result:a", "result:b"}, keys)

	n, err := s.DeleteByPattern(ctx, "result:*")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.True(t, mr.Exists("spin:keep"))
}
