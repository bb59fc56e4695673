// Package engine wires the risk-control engine's core (C9): the
// synchronous on_order/on_trade/on_cancel entrypoints that enrich an
// event's dimension key, fan it out to every configured rule, dedup the
// resulting actions through the suspend/resume latch, and forward
// admitted actions to the downstream sink. It also owns the rule set's
// hot-swap, the periodic tick sweep, and snapshot/restore.
//
// The shape follows the teacher's central orchestrator struct holding
// every subsystem handle, but it has no context/cancel/WaitGroup
// lifecycle and no event loop of its own: callers (an ingest adapter's
// dispatch loop, an HTTP handler, a test) invoke
// OnOrder/OnTrade/OnCancel/Tick directly rather than the engine pulling
// from its own internal channels.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"riskengine/internal/action"
	"riskengine/internal/catalog"
	"riskengine/internal/metrics"
	"riskengine/internal/orderindex"
	"riskengine/internal/rules"
	"riskengine/internal/snapshot"
	"riskengine/internal/stats"
	"riskengine/pkg/types"
)

// Sink delivers an admitted action to whatever downstream system
// enforces it (a matching engine, a gateway, an alerting channel).
type Sink interface {
	Deliver(ctx context.Context, a types.Action, reasons []string) error
}

// Store persists and restores the engine's serialized snapshot blob.
type Store interface {
	Save(blob []byte) error
	Load() ([]byte, error)
}

// Engine is the risk-control core. All exported methods are safe for
// concurrent use.
type Engine struct {
	catalogMu sync.RWMutex
	catalog   *catalog.Catalog

	orderIdx *orderindex.Index
	latch    *action.Latch
	metrics  *metrics.Metrics
	sink     Sink
	store    Store
	logger   *slog.Logger

	rulesMu sync.Mutex // serializes add/remove/replace compose-then-swap
	rules   atomic.Pointer[[]rules.Rule]
}

// New constructs an engine. cat may be catalog.Empty() if no seed file
// is configured; orderIndexCapacity bounds the order index's LRU size.
// reg registers the engine's Prometheus counters — pass a fresh
// prometheus.NewRegistry() in tests to avoid colliding with other
// engine instances.
func New(cat *catalog.Catalog, orderIndexCapacity int, sink Sink, store Store, reg prometheus.Registerer, logger *slog.Logger) (*Engine, error) {
	idx, err := orderindex.New(orderIndexCapacity)
	if err != nil {
		return nil, fmt.Errorf("engine: create order index: %w", err)
	}

	e := &Engine{
		catalog:  cat,
		orderIdx: idx,
		latch:    action.New(),
		metrics:  metrics.New(reg),
		sink:     sink,
		store:    store,
		logger:   logger.With("component", "engine"),
	}
	empty := []rules.Rule{}
	e.rules.Store(&empty)
	return e, nil
}

// OnOrder is the synchronous entrypoint for an order event (spec.md
// §4.2): it validates, enriches, records the order in the order index
// for later trade/cancel enrichment, and dispatches to every rule
// watching EventOrder.
func (e *Engine) OnOrder(ctx context.Context, o types.Order) error {
	if err := o.Validate(); err != nil {
		e.metrics.EventsMalformed.Inc()
		return fmt.Errorf("%w: order: %v", ErrMalformedEvent, err)
	}

	dim := e.catalogSnapshot().ResolveOrder(o)
	e.orderIdx.Put(o.OrderID, orderindex.Entry{
		AccountID:      dim.AccountID,
		ContractID:     dim.ContractID,
		ExchangeID:     dim.ExchangeID,
		AccountGroupID: dim.AccountGroupID,
	})

	e.dispatch(ctx, dim, types.EventOrder, rules.Event{
		TimestampNs: o.Timestamp,
		Price:       o.Price,
		Volume:      o.Volume,
	})
	e.metrics.EventsProcessed.Inc()
	return nil
}

// OnTrade is the synchronous entrypoint for a trade event (spec.md
// §4.2). If the trade does not carry its own account/contract, they are
// enriched from the originating order via the order index. A trade
// whose order is unknown to the index is still processed: the fields it
// cannot enrich stay types.Absent, so rules that don't require them live
// still collapse their key correctly and observe the event (§3, §4.7).
func (e *Engine) OnTrade(ctx context.Context, t types.Trade) error {
	if err := t.Validate(); err != nil {
		e.metrics.EventsMalformed.Inc()
		return fmt.Errorf("%w: trade: %v", ErrMalformedEvent, err)
	}

	accountID, contractID := t.AccountID, t.ContractID
	var groupID string
	if accountID == types.Absent || contractID == types.Absent {
		if entry, ok := e.orderIdx.Lookup(t.OrderID); ok {
			if accountID == types.Absent {
				accountID = entry.AccountID
			}
			if contractID == types.Absent {
				contractID = entry.ContractID
			}
			groupID = entry.AccountGroupID
		}
	}

	dim := e.catalogSnapshot().ResolveTrade(accountID, contractID)
	dim.AccountGroupID = groupID

	e.dispatch(ctx, dim, types.EventTrade, rules.Event{
		TimestampNs: t.Timestamp,
		Price:       t.Price,
		Volume:      t.Volume,
	})
	e.metrics.EventsProcessed.Inc()
	return nil
}

// OnCancel is the synchronous entrypoint for a cancel event (spec.md
// §4.2), enriched the same way as OnTrade: an unknown order leaves the
// unresolved fields Absent rather than dropping the event.
func (e *Engine) OnCancel(ctx context.Context, c types.Cancel) error {
	if err := c.Validate(); err != nil {
		e.metrics.EventsMalformed.Inc()
		return fmt.Errorf("%w: cancel: %v", ErrMalformedEvent, err)
	}

	accountID, contractID := c.AccountID, c.ContractID
	var groupID string
	if accountID == types.Absent || contractID == types.Absent {
		if entry, ok := e.orderIdx.Lookup(c.OrderID); ok {
			if accountID == types.Absent {
				accountID = entry.AccountID
			}
			if contractID == types.Absent {
				contractID = entry.ContractID
			}
			groupID = entry.AccountGroupID
		}
	}

	dim := e.catalogSnapshot().ResolveCancel(accountID, contractID)
	dim.AccountGroupID = groupID

	e.dispatch(ctx, dim, types.EventCancel, rules.Event{
		TimestampNs: c.Timestamp,
		Volume:      c.Volume,
	})
	e.metrics.EventsProcessed.Inc()
	return nil
}

// Tick sweeps every rule's time-dependent state (currently: rate-limit
// rules' auto-resume) without a new event, so a window can decay below
// threshold purely from the passage of time. Call this periodically
// (e.g. once a second) from a caller-owned ticker.
func (e *Engine) Tick(ctx context.Context, nowNs int64) {
	for _, r := range e.currentRules() {
		for _, res := range r.TickAll(nowNs) {
			e.admitAndDeliver(ctx, res)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, dim types.DimensionKey, kind types.EventKind, ev rules.Event) {
	for _, r := range e.currentRules() {
		if !watchesKind(r, kind) {
			continue
		}
		res := r.Observe(dim, kind, ev)
		if res.Empty() {
			continue
		}
		e.admitAndDeliver(ctx, res)
	}
}

func watchesKind(r rules.Rule, kind types.EventKind) bool {
	for _, k := range r.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func (e *Engine) admitAndDeliver(ctx context.Context, res types.RuleResult) {
	for _, a := range res.Actions {
		if !e.latch.Admit(a) {
			continue
		}

		if _, isSuspend, ok := a.Kind.Family(); ok {
			if isSuspend {
				e.metrics.LatchSuspends.Inc()
			} else {
				e.metrics.LatchResumes.Inc()
			}
		}

		if err := e.sink.Deliver(ctx, a, res.Reasons); err != nil {
			e.metrics.SinkFailures.Inc()
			e.logger.Error("action delivery failed", "kind", a.Kind, "subject", a.Subject, "error", err)
		}
	}
}

func (e *Engine) catalogSnapshot() *catalog.Catalog {
	e.catalogMu.RLock()
	defer e.catalogMu.RUnlock()
	return e.catalog
}

// ReloadCatalog atomically swaps the instrument catalog an event is
// resolved against. Existing dimension keys already computed are
// unaffected; only subsequent events see the new mapping.
func (e *Engine) ReloadCatalog(cat *catalog.Catalog) {
	e.catalogMu.Lock()
	defer e.catalogMu.Unlock()
	e.catalog = cat
}

func (e *Engine) currentRules() []rules.Rule {
	p := e.rules.Load()
	if p == nil {
		return nil
	}
	return *p
}

// AddRule appends r to the live rule set. The swap is atomic: every
// event dispatched after AddRule returns observes r; every event
// dispatched concurrently with the call observes either the old or the
// new set, never a partial one.
func (e *Engine) AddRule(r rules.Rule) {
	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()
	current := e.currentRules()
	next := make([]rules.Rule, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, r)
	e.rules.Store(&next)
}

// RemoveRule removes the rule with the given name from the live rule
// set, if present.
func (e *Engine) RemoveRule(name string) {
	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()
	current := e.currentRules()
	next := make([]rules.Rule, 0, len(current))
	for _, r := range current {
		if r.Name() != name {
			next = append(next, r)
		}
	}
	e.rules.Store(&next)
}

// ReplaceRules atomically swaps the entire live rule set, e.g. when
// reloading a full configuration. For every incoming rule that shares
// its name with a rule in the outgoing set and implements
// rules.StateAdopter, the incoming rule adopts the outgoing rule's live
// per-key state first — a reconfiguration is a reparameterization, not
// an amnesty for in-flight aggregates.
func (e *Engine) ReplaceRules(rs []rules.Rule) {
	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()

	current := e.currentRules()
	byName := make(map[string]rules.Rule, len(current))
	for _, r := range current {
		byName[r.Name()] = r
	}

	next := make([]rules.Rule, len(rs))
	for i, r := range rs {
		if adopter, ok := r.(rules.StateAdopter); ok {
			if prev, ok := byName[r.Name()]; ok {
				adopter.AdoptState(prev)
			}
		}
		next[i] = r
	}
	e.rules.Store(&next)
}

// Rule looks up a rule by name in the live rule set.
func (e *Engine) Rule(name string) (rules.Rule, bool) {
	for _, r := range e.currentRules() {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// RuleNames returns the names of every rule currently in the live set,
// in their dispatch order.
func (e *Engine) RuleNames() []string {
	current := e.currentRules()
	out := make([]string, len(current))
	for i, r := range current {
		out[i] = r.Name()
	}
	return out
}

// UpdateRateLimit reconfigures the live RateLimitRule named name with a
// new threshold (and, if nonzero, a new window), constructing a fresh
// rule instance that adopts the outgoing one's rolling-window state
// (spec.md §4.4: "construct a new rule and swap"). Returns an error if
// no such rule exists or it is not a RateLimitRule.
func (e *Engine) UpdateRateLimit(name string, threshold int64, windowNs int64) error {
	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()

	current := e.currentRules()
	idx := -1
	for i, r := range current {
		if r.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no such rule %q", ErrConfigInvalid, name)
	}
	old, ok := current[idx].(*rules.RateLimitRule)
	if !ok {
		return fmt.Errorf("%w: rule %q is not a rate-limit rule", ErrConfigInvalid, name)
	}

	window := old.WindowNs
	if windowNs > 0 {
		window = windowNs
	}
	updated := rules.NewRateLimitRule(old.RuleName, old.Live, window, old.NumBuckets, threshold,
		old.SuspendKind, old.ResumeKind, old.Subject, old.Kind)
	updated.AdoptState(old)

	next := make([]rules.Rule, len(current))
	copy(next, current)
	next[idx] = updated
	e.rules.Store(&next)
	return nil
}

// UpdateVolumeLimit reconfigures the live ThresholdRule named name with
// a new threshold, constructing a fresh rule instance that adopts the
// outgoing one's daily counter. Returns an error if no such rule exists
// or it is not a ThresholdRule.
func (e *Engine) UpdateVolumeLimit(name string, threshold decimal.Decimal) error {
	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()

	current := e.currentRules()
	idx := -1
	for i, r := range current {
		if r.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no such rule %q", ErrConfigInvalid, name)
	}
	old, ok := current[idx].(*rules.ThresholdRule)
	if !ok {
		return fmt.Errorf("%w: rule %q is not a threshold rule", ErrConfigInvalid, name)
	}

	updated := rules.NewThresholdRule(old.RuleName, old.Live, old.Metric, threshold, old.Action, old.Subject)
	updated.AdoptState(old)

	next := make([]rules.Rule, len(current))
	copy(next, current)
	next[idx] = updated
	e.rules.Store(&next)
	return nil
}

// Snapshot captures every rule's daily-counter entries, the instrument
// catalog, and the dedup latch's suspended entries into a durable
// snapshot blob and persists it via the configured store. Rolling
// windows are not snapshotted — they re-warm from live traffic.
func (e *Engine) Snapshot() error {
	cat := e.catalogSnapshot()
	productByContract, exchangeByContract := cat.Snapshot()

	dailyCounters := make(map[string][]stats.DailyEntry)
	for _, r := range e.currentRules() {
		if tr, ok := r.(*rules.ThresholdRule); ok {
			dailyCounters[tr.Name()] = tr.Snapshot()
		}
	}

	s := snapshot.State{
		ProductByContract:  productByContract,
		ExchangeByContract: exchangeByContract,
		DailyCounters:      dailyCounters,
		LatchEntries:       e.latch.Snapshot(),
	}

	blob, err := snapshot.Encode(s)
	if err != nil {
		return fmt.Errorf("engine: encode snapshot: %w", err)
	}
	if err := e.store.Save(blob); err != nil {
		return fmt.Errorf("engine: save snapshot: %w", err)
	}
	return nil
}

// Restore loads the most recently persisted snapshot blob and replays
// it into the catalog, every ThresholdRule's daily counter (matched by
// rule name), and the dedup latch. It is a no-op if the store has never
// been saved to. Restore must run before the engine observes any live
// traffic.
func (e *Engine) Restore() error {
	blob, err := e.store.Load()
	if err != nil {
		return fmt.Errorf("engine: load snapshot: %w", err)
	}
	if blob == nil {
		return nil
	}

	s, err := snapshot.Decode(blob)
	if err != nil {
		if errors.Is(err, snapshot.ErrUnsupportedVersion) {
			return fmt.Errorf("%w: %v", ErrSnapshotVersion, err)
		}
		return fmt.Errorf("%w: %v", ErrSnapshotTruncated, err)
	}

	e.ReloadCatalog(catalog.New(s.ProductByContract, s.ExchangeByContract))

	for _, r := range e.currentRules() {
		tr, ok := r.(*rules.ThresholdRule)
		if !ok {
			continue
		}
		if entries, ok := s.DailyCounters[tr.Name()]; ok {
			tr.Restore(entries)
		}
	}

	e.latch.Restore(s.LatchEntries)
	return nil
}

// Metrics returns a point-in-time read of the engine's diagnostic
// counters, for the read-only inspection API.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Read()
}

// LatchSnapshot returns every currently suspended (subject, family)
// pair, for the read-only inspection API.
func (e *Engine) LatchSnapshot() []action.Entry {
	return e.latch.Snapshot()
}
