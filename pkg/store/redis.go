package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	client        *redis.Client
	prefix        string
	commitTimeout time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(opts ...RedisOption) (*RedisStore, error) {
	cfg := &RedisConfig{
		Host:          "localhost",
		Port:          6379,
		DB:            0,
		PoolSize:      10,
		PoolTimeout:   30 * time.Second,
		MinIdleConns:  2,
		CommitTimeout: 2 * time.Second,
		DialTimeout:   5 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	var ro *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		ro = parsed
	} else {
		ro = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	ro.PoolSize = cfg.PoolSize
	ro.PoolTimeout = cfg.PoolTimeout
	ro.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(ro)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", translate(err))
	}

	return NewRedisStoreFromClient(client, cfg.Prefix, cfg.CommitTimeout), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string, commitTimeout time.Duration) *RedisStore {
	if commitTimeout <= 0 {
		commitTimeout = 2 * time.Second
	}
	return &RedisStore{client: client, prefix: prefix, commitTimeout: commitTimeout}
}

// Client returns underlying redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Backend() string { return BackendRedis }

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return translate(s.client.Ping(ctx).Err())
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.wrapKey(key)).Result()
	if err != nil {
		return "", translate(err)
	}
	return v, nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := s.client.HGet(ctx, s.wrapKey(key), field).Result()
	if err != nil {
		return "", translate(err)
	}
	return v, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := s.client.HGetAll(ctx, s.wrapKey(key)).Result()
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := s.client.LRange(ctx, s.wrapKey(key), start, stop).Result()
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	v, err := s.client.LLen(ctx, s.wrapKey(key)).Result()
	return v, translate(err)
}

func (s *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]Z, error) {
	res, err := s.client.ZRangeByScoreWithScores(ctx, s.wrapKey(key), &redis.ZRangeBy{
		Min: strconv.FormatFloat(min, 'f', -1, 64),
		Max: strconv.FormatFloat(max, 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, translate(err)
	}
	return toZ(res), nil
}

func (s *RedisStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	res, err := s.client.ZRevRangeWithScores(ctx, s.wrapKey(key), start, stop).Result()
	if err != nil {
		return nil, translate(err)
	}
	return toZ(res), nil
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	v, err := s.client.ZCard(ctx, s.wrapKey(key)).Result()
	return v, translate(err)
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, s.wrapKey(key)).Result()
	if err != nil {
		return 0, translate(err)
	}
	return d, nil
}

func (s *RedisStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	v, err := s.client.Exists(ctx, s.wrapKeys(keys...)...).Result()
	return v, translate(err)
}

// Keys walks the keyspace with SCAN so large namespaces never block the server.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.wrapKey(pattern), 200).Result()
		if err != nil {
			return nil, translate(err)
		}
		for _, k := range keys {
			out = append(out, s.unwrapKey(k))
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// commitScript checks every op of a batch against the key types and integer
// values it would touch, and writes nothing unless all of them can succeed.
//
// KEYS[i] is the key of op i. ARGV holds, per op, its name, the number of
// arguments and the arguments.
var commitScript = redis.NewScript(`
local kinds, strs, hashes = {}, {}, {}

local function kind(k)
	if kinds[k] == nil then
		local t = redis.call("TYPE", k)
		if type(t) == "table" then t = t.ok end
		kinds[k] = t
	end
	return kinds[k]
end

local function isint(v)
	return v ~= nil and v ~= false and string.match(v, "^%-?%d+$") ~= nil
end

local function drop(k)
	kinds[k], strs[k], hashes[k] = "none", nil, {fresh = true, f = {}}
end

local function want(k, t)
	local have = kind(k)
	if have ~= "none" and have ~= t then
		return "WRONGTYPE Operation against a key holding the wrong kind of value"
	end
end

local ops, i = {}, 1
for n = 1, #KEYS do
	local argc = tonumber(ARGV[i + 1])
	local args = {}
	for j = 1, argc do args[j] = ARGV[i + 1 + j] end
	ops[n] = {name = ARGV[i], key = KEYS[n], args = args}
	i = i + 2 + argc
end

for _, op in ipairs(ops) do
	local k, a, err = op.key, op.args, nil
	if op.name == "SET" then
		kinds[k], strs[k], hashes[k] = "string", a[1], nil
	elseif op.name == "DEL" then
		drop(k)
	elseif op.name == "INCRBY" then
		err = want(k, "string")
		if not err and kind(k) == "string" then
			local v = strs[k]
			if v == nil then v = redis.call("GET", k) end
			if not isint(v) then err = "WRONGTYPE value is not an integer" end
		end
		kinds[k], strs[k] = "string", "0"
	elseif op.name == "LPUSH" then
		err = want(k, "list")
		kinds[k] = "list"
	elseif op.name == "LTRIM" or op.name == "LREM" then
		err = want(k, "list")
	elseif op.name == "HSET" or op.name == "HINCRBY" then
		err = want(k, "hash")
		local h = hashes[k]
		if h == nil then
			h = {fresh = kind(k) == "none", f = {}}
			hashes[k] = h
		end
		if not err and op.name == "HINCRBY" then
			local v = h.f[a[1]]
			if v == nil and not h.fresh then v = redis.call("HGET", k, a[1]) end
			if v ~= nil and v ~= false and not isint(v) then
				err = "WRONGTYPE hash value is not an integer"
			end
			h.f[a[1]] = "0"
		elseif op.name == "HSET" then
			for j = 1, #a, 2 do h.f[a[j]] = a[j + 1] end
		end
		kinds[k] = "hash"
	elseif op.name == "ZADD" then
		err = want(k, "zset")
		kinds[k] = "zset"
	elseif op.name == "ZREMRANGEBYRANK" then
		err = want(k, "zset")
	elseif op.name == "PEXPIRE" then
		if tonumber(a[1]) <= 0 then drop(k) end
	else
		err = "ERR unsupported op " .. op.name
	end
	if err then return redis.error_reply(err) end
end

for _, op in ipairs(ops) do
	redis.call(op.name, op.key, unpack(op.args))
end
return #ops
`)

// Commit applies every op atomically under the commit deadline. A deadline
// hit after the script was sent leaves the outcome unknown.
func (s *RedisStore) Commit(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ops))
	argv := make([]interface{}, 0, 4*len(ops))
	for _, op := range ops {
		name, args, err := scriptOp(op)
		if err != nil {
			return err
		}
		keys = append(keys, s.wrapKey(op.Key))
		argv = append(argv, name, len(args))
		argv = append(argv, args...)
	}

	ctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	return translate(commitScript.Run(ctx, s.client, keys, argv...).Err())
}

// scriptOp renders op as the command name and arguments after the key.
func scriptOp(op Op) (string, []interface{}, error) {
	switch op.Kind {
	case OpSet:
		return "SET", []interface{}{op.Value}, nil
	case OpDel:
		return "DEL", nil, nil
	case OpIncrBy:
		return "INCRBY", []interface{}{op.Delta}, nil
	case OpLPush:
		if len(op.Values) == 0 {
			return "", nil, fmt.Errorf("store: %s without values", op)
		}
		args := make([]interface{}, len(op.Values))
		for i, v := range op.Values {
			args[i] = v
		}
		return "LPUSH", args, nil
	case OpLTrim:
		return "LTRIM", []interface{}{op.Start, op.Stop}, nil
	case OpLRem:
		return "LREM", []interface{}{op.Delta, op.Value}, nil
	case OpHSet:
		if len(op.Fields) == 0 {
			return "", nil, fmt.Errorf("store: %s without fields", op)
		}
		args := make([]interface{}, 0, 2*len(op.Fields))
		for f, v := range op.Fields {
			args = append(args, f, v)
		}
		return "HSET", args, nil
	case OpHIncrBy:
		return "HINCRBY", []interface{}{op.Field, op.Delta}, nil
	case OpZAdd:
		return "ZADD", []interface{}{strconv.FormatFloat(op.Score, 'f', -1, 64), op.Value}, nil
	case OpZRemRangeByRank:
		return "ZREMRANGEBYRANK", []interface{}{op.Start, op.Stop}, nil
	case OpExpire:
		return "PEXPIRE", []interface{}{op.TTL.Milliseconds()}, nil
	}
	return "", nil, fmt.Errorf("store: unsupported op %s", op)
}

func (s *RedisStore) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := s.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var deleted int64
	for start := 0; start < len(keys); start += 500 {
		end := start + 500
		if end > len(keys) {
			end = len(keys)
		}
		n, err := s.client.Unlink(ctx, s.wrapKeys(keys[start:end]...)...).Result()
		if err != nil {
			return deleted, translate(err)
		}
		deleted += n
	}
	return deleted, nil
}

func (s *RedisStore) TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.wrapKey(key), owner, ttl).Result()
	return ok, translate(err)
}

// Unlock releases the lock only if owner still holds it.
func (s *RedisStore) Unlock(ctx context.Context, key, owner string) (bool, error) {
	n, err := unlockScript.Run(ctx, s.client, []string{s.wrapKey(key)}, owner).Int64()
	if err != nil {
		return false, translate(err)
	}
	return n == 1, nil
}

func (s *RedisStore) Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, s.client, []string{s.wrapKey(key)}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, translate(err)
	}
	return n == 1, nil
}

func (s *RedisStore) wrapKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

func (s *RedisStore) unwrapKey(key string) string {
	if s.prefix != "" && strings.HasPrefix(key, s.prefix+":") {
		return strings.TrimPrefix(key, s.prefix+":")
	}
	return key
}

func (s *RedisStore) wrapKeys(keys ...string) []string {
	wrapped := make([]string, len(keys))
	for i, key := range keys {
		wrapped[i] = s.wrapKey(key)
	}
	return wrapped
}

func toZ(in []redis.Z) []Z {
	out := make([]Z, 0, len(in))
	for _, z := range in {
		var m string
		switch v := z.Member.(type) {
		case string:
			m = v
		default:
			m = fmt.Sprint(v)
		}
		out = append(out, Z{Score: z.Score, Member: m})
	}
	return out
}

// translate folds go-redis errors into the store error set.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		if strings.HasPrefix(rerr.Error(), "WRONGTYPE") {
			return fmt.Errorf("%w: %v", ErrWrongType, err)
		}
		if strings.HasPrefix(rerr.Error(), "LOADING") || strings.HasPrefix(rerr.Error(), "READONLY") {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

var _ Store = (*RedisStore)(nil)
