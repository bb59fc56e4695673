package stats

import "sync"

// RollingWindow is a fixed-bucket ring counter over a trailing window of
// W nanoseconds, divided into B buckets (spec.md §4.4). Each bucket
// holds the count of events whose tick() landed in that bucket's time
// slot; Count sums every bucket whose start falls within the trailing
// window of the most recent tick.
//
// Severely out-of-order events — arriving with a timestamp older than
// the window — are counted into the bucket their own timestamp maps to
// rather than dropped. A bucket slot is reused across cycles of the
// ring, so an arrival far enough in the past to land in a slot that is
// about to be (or already was) overwritten by newer data simply
// contributes to whatever is currently occupying that slot. This
// mirrors the counter's single fixed-size state: there is no separate
// buffer to hold truly stale events, so an event's contribution is
// scoped to its own bucket regardless of arrival order, rather than
// discarded.
type RollingWindow struct {
	mu         sync.Mutex
	bucketNs   int64
	numBuckets int64
	starts     []int64
	counts     []int64
}

// NewRollingWindow creates a counter over a window of windowNs
// nanoseconds split into numBuckets buckets. windowNs and numBuckets
// must both be positive; numBuckets should divide evenly into windowNs
// for buckets of uniform width, though the implementation tolerates
// rounding.
func NewRollingWindow(windowNs int64, numBuckets int) *RollingWindow {
	if numBuckets < 1 {
		numBuckets = 1
	}
	bucketNs := windowNs / int64(numBuckets)
	if bucketNs < 1 {
		bucketNs = 1
	}
	return &RollingWindow{
		bucketNs:   bucketNs,
		numBuckets: int64(numBuckets),
		starts:     make([]int64, numBuckets),
		counts:     make([]int64, numBuckets),
	}
}

func (w *RollingWindow) bucketStart(ts int64) int64 {
	return (ts / w.bucketNs) * w.bucketNs
}

func (w *RollingWindow) bucketIndex(start int64) int64 {
	idx := (start / w.bucketNs) % w.numBuckets
	if idx < 0 {
		idx += w.numBuckets
	}
	return idx
}

// Tick records one event at timestamp ts and returns the counter's
// total over the trailing window ending at ts. A bucket whose stored
// start is older than the slot's computed start (the ring has wrapped
// past it) is reset to the new start before being incremented, so
// stale counts from a prior cycle never leak into a new one. A bucket
// whose stored start is newer (an out-of-order event) keeps its start
// and count and is incremented in place.
func (w *RollingWindow) Tick(ts int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := w.bucketStart(ts)
	idx := w.bucketIndex(start)
	if w.starts[idx] < start {
		w.starts[idx] = start
		w.counts[idx] = 0
	}
	w.counts[idx]++

	return w.sumLocked(ts)
}

// Count returns the current total over the trailing window ending at
// ts, without recording a new event.
func (w *RollingWindow) Count(ts int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sumLocked(ts)
}

func (w *RollingWindow) sumLocked(ts int64) int64 {
	windowNs := w.bucketNs * w.numBuckets
	lowerBound := ts - windowNs + 1

	var total int64
	for i := range w.starts {
		if w.starts[i] == 0 && w.counts[i] == 0 {
			continue
		}
		if w.starts[i] >= lowerBound && w.starts[i] <= ts {
			total += w.counts[i]
		}
	}
	return total
}

// Reset clears all buckets, discarding history.
func (w *RollingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.starts {
		w.starts[i] = 0
		w.counts[i] = 0
	}
}
