package stats

import (
	"github.com/shopspring/decimal"

	"riskengine/pkg/types"
)

// nsPerDay is the bucket width for the daily counter: a day-id is the
// event timestamp integer-divided by this constant, in UTC — spec.md
// §4.3 fixes the day boundary at UTC midnight regardless of the
// deployment's local timezone.
const nsPerDay = 86_400_000_000_000

// DayID returns the UTC day-id for a nanosecond Unix timestamp.
func DayID(timestampNs uint64) int32 {
	return int32(timestampNs / nsPerDay)
}

// DailyCounter is the daily multi-dimensional counter (C4): per
// (dimension key, day) accumulation of the five metrics, built directly
// on ShardedMap. A rule collapses the full dimension key to only its
// live components before calling Add, so two events differing only in
// a dimension the rule doesn't care about land in the same bucket.
type DailyCounter struct {
	m *ShardedMap
}

// NewDailyCounter creates a daily counter with the given shard count.
func NewDailyCounter(shardCount int) *DailyCounter {
	return &DailyCounter{m: NewShardedMap(shardCount)}
}

// Add accumulates delta into the metric for dim on the day containing
// timestampNs, and returns the new running total for that (dim, day,
// metric).
func (c *DailyCounter) Add(dim types.DimensionKey, timestampNs uint64, metric types.Metric, delta decimal.Decimal) decimal.Decimal {
	key := Key{Dim: dim, Day: DayID(timestampNs)}
	return c.m.Accumulate(key, metric, delta)
}

// Value returns the current running total for (dim, day, metric)
// without mutating it, or zero if nothing has accumulated yet.
func (c *DailyCounter) Value(dim types.DimensionKey, day int32, metric types.Metric) decimal.Decimal {
	return c.m.Get(Key{Dim: dim, Day: day}, metric)
}

// Snapshot returns every (dimension key, day, metric, value) entry
// currently held, for serialization by the snapshot codec (C10).
func (c *DailyCounter) Snapshot() []DailyEntry {
	var out []DailyEntry
	c.m.Each(func(key Key, metric types.Metric, value decimal.Decimal) {
		out = append(out, DailyEntry{Dim: key.Dim, Day: key.Day, Metric: metric, Value: value})
	})
	return out
}

// Restore re-populates the counter from previously snapshotted entries.
// It must only be called against a freshly constructed, empty counter.
func (c *DailyCounter) Restore(entries []DailyEntry) {
	for _, e := range entries {
		key := Key{Dim: e.Dim, Day: e.Day}
		c.m.Accumulate(key, e.Metric, e.Value)
	}
}

// DailyEntry is one (dimension key, day, metric) → value triple, the
// unit the snapshot codec serializes the daily counter as.
type DailyEntry struct {
	Dim    types.DimensionKey
	Day    int32
	Metric types.Metric
	Value  decimal.Decimal
}
