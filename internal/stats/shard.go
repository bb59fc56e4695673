// Package stats implements the statistics substrate: the sharded
// concurrent map (C3), the daily multi-dimensional counter built on it
// (C4), and the rolling-window counter (C5).
//
// The sharded map is the only scalable substrate for the engine's hot
// path — a single big lock over all statistics is explicitly ruled out
// (spec.md §9). Each shard owns its own mutex; accumulation on a given
// key additionally serializes only through that key's own entry lock,
// so concurrent accumulates on disjoint keys never contend even within
// the same shard.
package stats

import (
	"hash/fnv"
	"sync"

	"github.com/shopspring/decimal"

	"riskengine/pkg/types"
)

// Key is the composite key the sharded map partitions on: a dimension
// key plus the day-id it belongs to. C4 is the only consumer of
// ShardedMap today, but the map itself is generic over this shape so a
// future consumer (e.g. an intra-day rollup) can reuse it.
type Key struct {
	Dim types.DimensionKey
	Day int32
}

// hash computes the fnv1a hash of the key, used to route it to a shard.
// Routing only needs to distribute keys evenly — it does not need to be
// cryptographically strong, so a straight field-by-field fnv1a over the
// key's string components is sufficient.
func (k Key) hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k.Dim.AccountID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Dim.ContractID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Dim.ProductID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Dim.ExchangeID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Dim.AccountGroupID))
	_, _ = h.Write([]byte{0, byte(k.Day), byte(k.Day >> 8), byte(k.Day >> 16), byte(k.Day >> 24)})
	return h.Sum64()
}

// entry is the per-key mapping of metric→scalar. Its own mutex is the
// unit of atomicity for accumulate: a single lock acquisition covers
// the read-modify-write, so concurrent accumulates on the same (key,
// metric) pair linearize and produce exactly-once addition, while
// accumulates on a different key's entry never block on this one.
type entry struct {
	mu      sync.Mutex
	metrics map[types.Metric]decimal.Decimal
}

// mapShard is one of the N independently-locked partitions. Its RWMutex
// guards only the entries map itself (insertion of new keys) — once an
// entry exists, all further access goes through the entry's own mutex,
// so the shard lock is held only briefly.
type mapShard struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

// ShardedMap is a fixed array of N shards (N a power of two). A key
// routes to shard hash(key) & (N-1).
type ShardedMap struct {
	shards []*mapShard
	mask   uint64
}

// NewShardedMap creates a sharded map with n shards. n must be a power
// of two; values that are not are rounded up to the next power of two.
func NewShardedMap(n int) *ShardedMap {
	if n < 1 {
		n = 1
	}
	n = nextPowerOfTwo(n)

	shards := make([]*mapShard, n)
	for i := range shards {
		shards[i] = &mapShard{entries: make(map[Key]*entry)}
	}
	return &ShardedMap{shards: shards, mask: uint64(n - 1)}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (m *ShardedMap) shardFor(k Key) *mapShard {
	return m.shards[k.hash()&m.mask]
}

// getOrInsert returns the entry for k, creating it (and its metrics
// map) on first access. This is the only operation that can block on
// the shard's lock.
func (m *ShardedMap) getOrInsert(k Key) *entry {
	shard := m.shardFor(k)

	shard.mu.RLock()
	e, ok := shard.entries[k]
	shard.mu.RUnlock()
	if ok {
		return e
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if e, ok = shard.entries[k]; ok {
		return e
	}
	e = &entry{metrics: make(map[types.Metric]decimal.Decimal)}
	shard.entries[k] = e
	return e
}

// Accumulate adds delta to the scalar at (key, metric), creating the
// key and the metric entry as needed, and returns the post-increment
// value. Accumulate is the sharded map's only mutating operation and is
// observable as a single atomic transition for a given (key, metric)
// pair.
func (m *ShardedMap) Accumulate(key Key, metric types.Metric, delta decimal.Decimal) decimal.Decimal {
	e := m.getOrInsert(key)

	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.metrics[metric].Add(delta)
	e.metrics[metric] = next
	return next
}

// Get returns the current scalar at (key, metric), or zero if absent.
// Get never creates entries.
func (m *ShardedMap) Get(key Key, metric types.Metric) decimal.Decimal {
	shard := m.shardFor(key)

	shard.mu.RLock()
	e, ok := shard.entries[key]
	shard.mu.RUnlock()
	if !ok {
		return decimal.Zero
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics[metric]
}

// GetAll returns a copy of every metric accumulated for key, or nil if
// the key has no entries.
func (m *ShardedMap) GetAll(key Key) map[types.Metric]decimal.Decimal {
	shard := m.shardFor(key)

	shard.mu.RLock()
	e, ok := shard.entries[key]
	shard.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[types.Metric]decimal.Decimal, len(e.metrics))
	for k, v := range e.metrics {
		out[k] = v
	}
	return out
}

// Each calls fn once per (key, metric, value) triple currently stored
// across all shards. Used by the snapshot codec (C10) to serialize
// daily counter state. fn must not call back into the ShardedMap.
func (m *ShardedMap) Each(fn func(key Key, metric types.Metric, value decimal.Decimal)) {
	for _, shard := range m.shards {
		shard.mu.RLock()
		entries := make([]Key, 0, len(shard.entries))
		for k := range shard.entries {
			entries = append(entries, k)
		}
		shard.mu.RUnlock()

		for _, k := range entries {
			shard.mu.RLock()
			e, ok := shard.entries[k]
			shard.mu.RUnlock()
			if !ok {
				continue
			}
			e.mu.Lock()
			for metric, value := range e.metrics {
				fn(k, metric, value)
			}
			e.mu.Unlock()
		}
	}
}

// ShardCount returns the number of shards.
func (m *ShardedMap) ShardCount() int {
	return len(m.shards)
}
