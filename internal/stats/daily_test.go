package stats

import (
	"testing"

	"github.com/shopspring/decimal"

	"riskengine/pkg/types"
)

func TestDayID(t *testing.T) {
	t.Parallel()
	// 2024-01-02T00:00:00Z in nanoseconds.
	const day2Start = 19724 * nsPerDay
	if got := DayID(day2Start); got != 19724 {
		t.Errorf("DayID() = %d, want 19724", got)
	}
	if got := DayID(day2Start - 1); got != 19723 {
		t.Errorf("DayID() just before midnight = %d, want 19723", got)
	}
}

func TestDailyCounterAddAccumulates(t *testing.T) {
	t.Parallel()
	c := NewDailyCounter(8)
	dim := types.DimensionKey{AccountID: "A", ProductID: "T10Y"}

	c.Add(dim, 0, types.MetricTradeVolume, decimal.NewFromInt(100))
	got := c.Add(dim, 1, types.MetricTradeVolume, decimal.NewFromInt(50))
	if !got.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Add() running total = %v, want 150", got)
	}

	if v := c.Value(dim, 0, types.MetricTradeVolume); !v.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Value() = %v, want 150", v)
	}
}

func TestDailyCounterDayRollover(t *testing.T) {
	t.Parallel()
	c := NewDailyCounter(8)
	dim := types.DimensionKey{AccountID: "A"}

	c.Add(dim, 0, types.MetricTradeVolume, decimal.NewFromInt(100))
	c.Add(dim, nsPerDay, types.MetricTradeVolume, decimal.NewFromInt(10))

	if v := c.Value(dim, 0, types.MetricTradeVolume); !v.Equal(decimal.NewFromInt(100)) {
		t.Errorf("day 0 value = %v, want 100 (must not be polluted by day 1)", v)
	}
	if v := c.Value(dim, 1, types.MetricTradeVolume); !v.Equal(decimal.NewFromInt(10)) {
		t.Errorf("day 1 value = %v, want 10", v)
	}
}

func TestDailyCounterCollapsedDimensionsAggregate(t *testing.T) {
	t.Parallel()
	c := NewDailyCounter(8)

	account := types.DimensionKey{AccountID: "A"}
	c.Add(account, 0, types.MetricOrderCount, decimal.NewFromInt(1))
	c.Add(account, 1, types.MetricOrderCount, decimal.NewFromInt(1))

	if v := c.Value(account, 0, types.MetricOrderCount); !v.Equal(decimal.NewFromInt(2)) {
		t.Errorf("collapsed dimension aggregate = %v, want 2", v)
	}
}

func TestDailyCounterSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()
	c := NewDailyCounter(8)
	dimA := types.DimensionKey{AccountID: "A"}
	dimB := types.DimensionKey{AccountID: "B", ProductID: "T10Y"}

	c.Add(dimA, 0, types.MetricOrderCount, decimal.NewFromInt(3))
	c.Add(dimB, nsPerDay, types.MetricTradeVolume, decimal.NewFromInt(500))

	entries := c.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("Snapshot() returned %d entries, want 2", len(entries))
	}

	restored := NewDailyCounter(4)
	restored.Restore(entries)

	if v := restored.Value(dimA, 0, types.MetricOrderCount); !v.Equal(decimal.NewFromInt(3)) {
		t.Errorf("restored dimA = %v, want 3", v)
	}
	if v := restored.Value(dimB, 1, types.MetricTradeVolume); !v.Equal(decimal.NewFromInt(500)) {
		t.Errorf("restored dimB = %v, want 500", v)
	}
}
