package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNil is returned by single-value reads when the key does not exist.
	ErrNil = errors.New("store: key not found")
	// ErrUnavailable means the backend could not be reached or the connection failed mid-command.
	ErrUnavailable = errors.New("store: backend unavailable")
	// ErrDeadlineExceeded means a commit ran out of time; the batch may or may not have landed.
	ErrDeadlineExceeded = errors.New("store: deadline exceeded")
	// ErrWrongType means an operation hit a key holding a different kind of value.
	ErrWrongType = errors.New("store: wrong kind of value")
)

// Z is a sorted-set member with its score.
type Z struct {
	Score  float64
	Member string
}

// Store is the key/value bus shared by every component. All values are text.
// Writes only happen through Commit, which applies every op or none of them.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]Z, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]Z, error)
	ZCard(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)

	Commit(ctx context.Context, ops ...Op) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, owner string) (bool, error)
	// Extend resets the lock TTL if owner still holds it.
	Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Backend() string
	Close() error
}

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// TTL sentinels, matching Redis semantics.
const (
	TTLMissing  = time.Duration(-2)
	TTLNoExpiry = time.Duration(-1)
)
