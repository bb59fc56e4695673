// Package rules implements the two built-in rule kinds (§4.5): the
// threshold-limit rule over the daily counter, and the rate-limit rule
// over the rolling-window counter. Both share the Rule interface so the
// engine can hold a heterogeneous, atomically-swappable rule set.
package rules

import "riskengine/pkg/types"

// Rule is a single configured risk check. The engine calls Observe once
// per relevant event, in-line on the hot path, and forwards any
// resulting actions through the dedup latch.
type Rule interface {
	// Name identifies the rule for diagnostics and logging.
	Name() string

	// Kinds reports which event kinds this rule observes.
	Kinds() []types.EventKind

	// Observe evaluates the rule against one event, given its resolved
	// dimension key and timestamp, and returns the resulting actions
	// (empty if the rule does not fire).
	Observe(dim types.DimensionKey, kind types.EventKind, ev Event) types.RuleResult

	// TickAll re-evaluates every dimension key this rule holds
	// time-dependent state for (e.g. a rate-limit rule's auto-resume),
	// without a new event, and returns every resulting action. Rules
	// with no time-dependent state return nil.
	TickAll(nowNs int64) []types.RuleResult
}

// StateAdopter is implemented by rules that carry live, per-key state
// (a running window, an accumulated counter) which must survive a
// reconfiguration. spec.md's update_rate_limit/update_volume_limit and
// replace_rules describe reconfiguration as "construct a new rule and
// swap" — without AdoptState that swap would silently reset every
// in-flight aggregate, turning a threshold tweak into an amnesty.
type StateAdopter interface {
	// AdoptState transfers prev's per-key state into the receiver, if
	// prev is the same concrete rule type. A type mismatch (or a prev
	// that never existed) is a no-op — the new rule starts cold.
	AdoptState(prev Rule)
}

// Event is the minimal per-event data a rule needs beyond the resolved
// dimension key: the event's own numeric fields, so a threshold rule can
// compute volume/notional contributions without type-switching on the
// original Order/Trade/Cancel.
type Event struct {
	TimestampNs uint64
	Price       float64
	Volume      int32
}
