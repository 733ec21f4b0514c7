package store

import (
	"fmt"
	"time"
)

type OpKind int

const (
	OpSet OpKind = iota + 1
	OpDel
	OpIncrBy
	OpLPush
	OpLTrim
	OpLRem
	OpHSet
	OpHIncrBy
	OpZAdd
	OpZRemRangeByRank
	OpExpire
)

// Op is one primitive write inside a Commit batch.
type Op struct {
	Kind   OpKind
	Key    string
	Field  string
	Value  string
	Values []string
	Fields map[string]string
	Delta  int64
	Start  int64
	Stop   int64
	Score  float64
	TTL    time.Duration
}

func (o Op) String() string {
	switch o.Kind {
	case OpSet:
		return "SET " + o.Key
	case OpDel:
		return "DEL " + o.Key
	case OpIncrBy:
		return fmt.Sprintf("INCRBY %s %d", o.Key, o.Delta)
	case OpLPush:
		return "LPUSH " + o.Key
	case OpLTrim:
		return fmt.Sprintf("LTRIM %s %d %d", o.Key, o.Start, o.Stop)
	case OpLRem:
		return "LREM " + o.Key
	case OpHSet:
		return "HSET " + o.Key
	case OpHIncrBy:
		return fmt.Sprintf("HINCRBY %s %s %d", o.Key, o.Field, o.Delta)
	case OpZAdd:
		return "ZADD " + o.Key
	case OpZRemRangeByRank:
		return fmt.Sprintf("ZREMRANGEBYRANK %s %d %d", o.Key, o.Start, o.Stop)
	case OpExpire:
		return fmt.Sprintf("EXPIRE %s %s", o.Key, o.TTL)
	}
	return fmt.Sprintf("op(%d) %s", o.Kind, o.Key)
}

func Set(key, value string) Op { return Op{Kind: OpSet, Key: key, Value: value} }

func Del(key string) Op { return Op{Kind: OpDel, Key: key} }

func Incr(key string) Op { return IncrBy(key, 1) }

func IncrBy(key string, delta int64) Op { return Op{Kind: OpIncrBy, Key: key, Delta: delta} }

// LPush prepends values so the last argument ends up at the head.
func LPush(key string, values ...string) Op { return Op{Kind: OpLPush, Key: key, Values: values} }

func LTrim(key string, start, stop int64) Op {
	return Op{Kind: OpLTrim, Key: key, Start: start, Stop: stop}
}

// LRem removes count occurrences of value; 0 removes all of them.
func LRem(key string, count int64, value string) Op {
	return Op{Kind: OpLRem, Key: key, Delta: count, Value: value}
}

func HSet(key string, fields map[string]string) Op { return Op{Kind: OpHSet, Key: key, Fields: fields} }

func HIncrBy(key, field string, delta int64) Op {
	return Op{Kind: OpHIncrBy, Key: key, Field: field, Delta: delta}
}

func ZAdd(key string, score float64, member string) Op {
	return Op{Kind: OpZAdd, Key: key, Score: score, Value: member}
}

func ZRemRangeByRank(key string, start, stop int64) Op {
	return Op{Kind: OpZRemRangeByRank, Key: key, Start: start, Stop: stop}
}

func Expire(key string, ttl time.Duration) Op { return Op{Kind: OpExpire, Key: key, TTL: ttl} }
