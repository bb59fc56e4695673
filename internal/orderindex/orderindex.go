// Package orderindex implements the bounded order index (C6): a
// fixed-capacity oid→(account, contract) mapping the engine consults to
// enrich trades and cancels that arrive without their own dimension
// fields. Capacity is bounded and evicts the oldest (least-recently-used)
// entry once full — an LRU ring rather than an unbounded map, so a feed
// that never cleanly closes out orders cannot grow the index without
// bound.
package orderindex

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is the dimension data recorded against an order-id.
type Entry struct {
	AccountID      string
	ContractID     string
	ExchangeID     string
	AccountGroupID string
}

// Index is the bounded oid→Entry mapping. It is safe for concurrent use;
// hashicorp/golang-lru/v2 guards its own state internally.
type Index struct {
	cache *lru.Cache[uint64, Entry]
}

// New creates an index with room for capacity entries. capacity must be
// positive.
func New(capacity int) (*Index, error) {
	cache, err := lru.New[uint64, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Index{cache: cache}, nil
}

// Put records (or refreshes) the dimension entry for orderID, evicting
// the least-recently-used entry if the index is at capacity.
func (i *Index) Put(orderID uint64, e Entry) {
	i.cache.Add(orderID, e)
}

// Lookup returns the recorded entry for orderID, and whether one
// exists. A miss is not an error — spec.md §4.1 treats it as "dimension
// fields remain Absent."
func (i *Index) Lookup(orderID uint64) (Entry, bool) {
	return i.cache.Get(orderID)
}

// Remove drops orderID from the index, used once an order is known to
// be fully closed out (filled or cancelled) and will not be referenced
// again.
func (i *Index) Remove(orderID uint64) {
	i.cache.Remove(orderID)
}

// Len returns the number of entries currently held.
func (i *Index) Len() int {
	return i.cache.Len()
}

// Snapshot returns every (orderID, Entry) pair currently held, as an
// unordered map. The order index is not part of the persisted snapshot
// (spec.md treats it as re-warmable working state, the same as the
// rolling-window counters); Snapshot is exposed for diagnostics and
// tests.
func (i *Index) Snapshot() map[uint64]Entry {
	out := make(map[uint64]Entry, i.cache.Len())
	for _, key := range i.cache.Keys() {
		if v, ok := i.cache.Peek(key); ok {
			out[key] = v
		}
	}
	return out
}
