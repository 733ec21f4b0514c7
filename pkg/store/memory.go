package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

type itemKind int

const (
	kindString itemKind = iota + 1
	kindList
	kindHash
	kindZSet
)

// memoryItem stores one key. Lists are head-first.
type memoryItem struct {
	kind     itemKind
	str      string
	list     []string
	hash     map[string]string
	zset     map[string]float64
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && !now.Before(m.expireAt)
}

func (m *memoryItem) clone() *memoryItem {
	c := &memoryItem{kind: m.kind, str: m.str, expireAt: m.expireAt}
	if m.list != nil {
		c.list = append([]string(nil), m.list...)
	}
	if m.hash != nil {
		c.hash = make(map[string]string, len(m.hash))
		for k, v := range m.hash {
			c.hash[k] = v
		}
	}
	if m.zset != nil {
		c.zset = make(map[string]float64, len(m.zset))
		for k, v := range m.zset {
			c.zset[k] = v
		}
	}
	return c
}

// sorted returns members ordered by score then member, as Redis does.
func (m *memoryItem) sorted() []Z {
	out := make([]Z, 0, len(m.zset))
	for member, score := range m.zset {
		out = append(out, Z{Score: score, Member: member})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

// MemoryStore implements Store in process memory. A commit stages copies of
// every touched key and swaps them in only when all ops succeeded.
type MemoryStore struct {
	data   map[string]*memoryItem
	mutex  sync.RWMutex
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	cfg := &MemoryConfig{
		CleanupInterval: 5 * time.Minute,
		Now:             time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	ms := &MemoryStore{
		data:   make(map[string]*memoryItem),
		now:    cfg.Now,
		stopCh: make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go ms.cleanupExpired(cfg.CleanupInterval)
	}
	return ms
}

func (ms *MemoryStore) Backend() string { return BackendMemory }

func (ms *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// lookup returns a live item or nil. Callers hold the lock.
func (ms *MemoryStore) lookup(key string) *memoryItem {
	item, ok := ms.data[key]
	if !ok || item.expired(ms.now()) {
		return nil
	}
	return item
}

func (ms *MemoryStore) typed(key string, kind itemKind) (*memoryItem, error) {
	item := ms.lookup(key)
	if item == nil {
		return nil, nil
	}
	if item.kind != kind {
		return nil, fmt.Errorf("%w: %s", ErrWrongType, key)
	}
	return item, nil
}

func (ms *MemoryStore) Get(_ context.Context, key string) (string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindString)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", ErrNil
	}
	return item.str, nil
}

func (ms *MemoryStore) HGet(_ context.Context, key, field string) (string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindHash)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", ErrNil
	}
	v, ok := item.hash[field]
	if !ok {
		return "", ErrNil
	}
	return v, nil
}

func (ms *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if item == nil {
		return out, nil
	}
	for k, v := range item.hash {
		out[k] = v
	}
	return out, nil
}

func (ms *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindList)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return []string{}, nil
	}
	from, to, ok := normRange(start, stop, len(item.list))
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), item.list[from:to+1]...), nil
}

func (ms *MemoryStore) LLen(_ context.Context, key string) (int64, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindList)
	if err != nil || item == nil {
		return 0, err
	}
	return int64(len(item.list)), nil
}

func (ms *MemoryStore) ZRangeByScore(_ context.Context, key string, min, max float64) ([]Z, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindZSet)
	if err != nil {
		return nil, err
	}
	out := []Z{}
	if item == nil {
		return out, nil
	}
	for _, z := range item.sorted() {
		if z.Score >= min && z.Score <= max {
			out = append(out, z)
		}
	}
	return out, nil
}

func (ms *MemoryStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]Z, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindZSet)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return []Z{}, nil
	}
	asc := item.sorted()
	desc := make([]Z, len(asc))
	for i, z := range asc {
		desc[len(asc)-1-i] = z
	}
	from, to, ok := normRange(start, stop, len(desc))
	if !ok {
		return []Z{}, nil
	}
	return desc[from : to+1], nil
}

func (ms *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item, err := ms.typed(key, kindZSet)
	if err != nil || item == nil {
		return 0, err
	}
	return int64(len(item.zset)), nil
}

func (ms *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	item := ms.lookup(key)
	switch {
	case item == nil:
		return TTLMissing, nil
	case item.expireAt.IsZero():
		return TTLNoExpiry, nil
	}
	return item.expireAt.Sub(ms.now()).Truncate(time.Second), nil
}

func (ms *MemoryStore) Exists(_ context.Context, keys ...string) (int64, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	var n int64
	for _, key := range keys {
		if ms.lookup(key) != nil {
			n++
		}
	}
	return n, nil
}

func (ms *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	out := make([]string, 0)
	for key := range ms.data {
		if ms.lookup(key) == nil {
			continue
		}
		ok, err := path.Match(pattern, key)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Commit applies ops on staged copies; nothing is visible unless every op succeeds.
func (ms *MemoryStore) Commit(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)
		}
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	staged := make(map[string]*memoryItem)
	get := func(key string) *memoryItem {
		if item, ok := staged[key]; ok {
			return item
		}
		var c *memoryItem
		if live := ms.lookup(key); live != nil {
			c = live.clone()
		}
		staged[key] = c
		return c
	}

	for _, op := range ops {
		item, err := ms.apply(op, get(op.Key))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		staged[op.Key] = item
	}

	for key, item := range staged {
		if item == nil {
			delete(ms.data, key)
			continue
		}
		ms.data[key] = item
	}
	return nil
}

// apply mutates cur (a private copy) and returns the new value; nil deletes the key.
func (ms *MemoryStore) apply(op Op, cur *memoryItem) (*memoryItem, error) {
	want := func(kind itemKind) (*memoryItem, error) {
		if cur == nil {
			it := &memoryItem{kind: kind}
			switch kind {
			case kindHash:
				it.hash = make(map[string]string)
			case kindZSet:
				it.zset = make(map[string]float64)
			}
			return it, nil
		}
		if cur.kind != kind {
			return nil, ErrWrongType
		}
		return cur, nil
	}

	switch op.Kind {
	case OpSet:
		return &memoryItem{kind: kindString, str: op.Value}, nil

	case OpDel:
		return nil, nil

	case OpIncrBy:
		it, err := want(kindString)
		if err != nil {
			return nil, err
		}
		v := int64(0)
		if it.str != "" {
			v, err = strconv.ParseInt(it.str, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: value is not an integer", ErrWrongType)
			}
		}
		it.str = strconv.FormatInt(v+op.Delta, 10)
		return it, nil

	case OpLPush:
		it, err := want(kindList)
		if err != nil {
			return nil, err
		}
		head := make([]string, 0, len(op.Values)+len(it.list))
		for i := len(op.Values) - 1; i >= 0; i-- {
			head = append(head, op.Values[i])
		}
		it.list = append(head, it.list...)
		return it, nil

	case OpLTrim:
		if cur == nil {
			return nil, nil
		}
		it, err := want(kindList)
		if err != nil {
			return nil, err
		}
		from, to, ok := normRange(op.Start, op.Stop, len(it.list))
		if !ok {
			return nil, nil
		}
		it.list = append([]string(nil), it.list[from:to+1]...)
		return it, nil

	case OpLRem:
		if cur == nil {
			return nil, nil
		}
		it, err := want(kindList)
		if err != nil {
			return nil, err
		}
		it.list = removeValue(it.list, op.Value, op.Delta)
		if len(it.list) == 0 {
			return nil, nil
		}
		return it, nil

	case OpHSet:
		it, err := want(kindHash)
		if err != nil {
			return nil, err
		}
		for f, v := range op.Fields {
			it.hash[f] = v
		}
		return it, nil

	case OpHIncrBy:
		it, err := want(kindHash)
		if err != nil {
			return nil, err
		}
		v := int64(0)
		if s, ok := it.hash[op.Field]; ok {
			v, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: hash value is not an integer", ErrWrongType)
			}
		}
		it.hash[op.Field] = strconv.FormatInt(v+op.Delta, 10)
		return it, nil

	case OpZAdd:
		it, err := want(kindZSet)
		if err != nil {
			return nil, err
		}
		it.zset[op.Value] = op.Score
		return it, nil

	case OpZRemRangeByRank:
		if cur == nil {
			return nil, nil
		}
		it, err := want(kindZSet)
		if err != nil {
			return nil, err
		}
		asc := it.sorted()
		from, to, ok := normRange(op.Start, op.Stop, len(asc))
		if ok {
			for _, z := range asc[from : to+1] {
				delete(it.zset, z.Member)
			}
		}
		if len(it.zset) == 0 {
			return nil, nil
		}
		return it, nil

	case OpExpire:
		if cur == nil {
			return nil, nil
		}
		if op.TTL <= 0 {
			return nil, nil
		}
		cur.expireAt = ms.now().Add(op.TTL)
		return cur, nil
	}
	return nil, fmt.Errorf("unsupported op kind %d", op.Kind)
}

func (ms *MemoryStore) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	keys, err := ms.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	var n int64
	for _, key := range keys {
		if _, ok := ms.data[key]; ok {
			delete(ms.data, key)
			n++
		}
	}
	return n, nil
}

func (ms *MemoryStore) TryLock(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if ms.lookup(key) != nil {
		return false, nil
	}
	item := &memoryItem{kind: kindString, str: owner}
	if ttl > 0 {
		item.expireAt = ms.now().Add(ttl)
	}
	ms.data[key] = item
	return true, nil
}

func (ms *MemoryStore) Unlock(_ context.Context, key, owner string) (bool, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	item := ms.lookup(key)
	if item == nil || item.kind != kindString || item.str != owner {
		return false, nil
	}
	delete(ms.data, key)
	return true, nil
}

func (ms *MemoryStore) Extend(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	item := ms.lookup(key)
	if item == nil || item.kind != kindString || item.str != owner {
		return false, nil
	}
	item.expireAt = ms.now().Add(ttl)
	return true, nil
}

func (ms *MemoryStore) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stopCh:
			return
		case <-ticker.C:
			ms.mutex.Lock()
			now := ms.now()
			for key, item := range ms.data {
				if item.expired(now) {
					delete(ms.data, key)
				}
			}
			ms.mutex.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (ms *MemoryStore) Close() error {
	ms.once.Do(func() { close(ms.stopCh) })
	return nil
}

// normRange resolves Redis-style inclusive indexes (negatives count from the end).
func normRange(start, stop int64, n int) (int, int, bool) {
	size := int64(n)
	if start < 0 {
		start += size
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop += size
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return int(start), int(stop), true
}

func removeValue(list []string, value string, count int64) []string {
	out := make([]string, 0, len(list))
	switch {
	case count >= 0:
		removed := int64(0)
		for _, v := range list {
			if v == value && (count == 0 || removed < count) {
				removed++
				continue
			}
			out = append(out, v)
		}
	default:
		limit := -count
		removed := int64(0)
		keep := make([]bool, len(list))
		for i := len(list) - 1; i >= 0; i-- {
			if list[i] == value && removed < limit {
				removed++
				continue
			}
			keep[i] = true
		}
		for i, v := range list {
			if keep[i] {
				out = append(out, v)
			}
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
