package rules

import (
	"sync"

	"github.com/shopspring/decimal"

	"riskengine/internal/stats"
	"riskengine/pkg/types"
)

// SubjectField selects which component of a (possibly collapsed)
// dimension key an action's Subject is drawn from.
type SubjectField int

const (
	SubjectAccount SubjectField = iota
	SubjectContract
	SubjectProduct
	SubjectExchange
	SubjectAccountGroup
)

func subjectValue(dim types.DimensionKey, field SubjectField) string {
	switch field {
	case SubjectContract:
		return dim.ContractID
	case SubjectProduct:
		return dim.ProductID
	case SubjectExchange:
		return dim.ExchangeID
	case SubjectAccountGroup:
		return dim.AccountGroupID
	default:
		return dim.AccountID
	}
}

// ThresholdRule implements the threshold-limit rule (spec.md §4.5.1): it
// accumulates a metric into its own daily counter, collapsed to its
// configured live dimensions, and fires an action the first (and every
// subsequent) time the running total strictly exceeds Threshold.
//
// Contribution per event kind follows spec.md §4.1: a trade contributes
// to trade_volume, trade_notional, and trade_count simultaneously; an
// order contributes to order_count; a cancel contributes to
// cancel_count. A rule watches exactly one of these metrics but the
// counter it owns tracks all of them, so a rule switched to watch a
// different metric at runtime does not need to replay history.
type ThresholdRule struct {
	RuleName string
	Live     types.LiveDimensions
	Metric   types.Metric
	Action   types.ActionKind
	Subject  SubjectField

	thresholdMu sync.RWMutex
	threshold   decimal.Decimal

	counter *stats.DailyCounter
}

// NewThresholdRule constructs a threshold rule with its own private
// daily counter.
func NewThresholdRule(name string, live types.LiveDimensions, metric types.Metric, threshold decimal.Decimal, action types.ActionKind, subject SubjectField) *ThresholdRule {
	return &ThresholdRule{
		RuleName:  name,
		Live:      live,
		Metric:    metric,
		threshold: threshold,
		Action:    action,
		Subject:   subject,
		counter:   stats.NewDailyCounter(16),
	}
}

// Threshold returns the rule's current breach threshold.
func (r *ThresholdRule) Threshold() decimal.Decimal {
	r.thresholdMu.RLock()
	defer r.thresholdMu.RUnlock()
	return r.threshold
}

func (r *ThresholdRule) Name() string { return r.RuleName }

func (r *ThresholdRule) Kinds() []types.EventKind {
	return []types.EventKind{types.EventOrder, types.EventTrade, types.EventCancel}
}

func (r *ThresholdRule) Observe(dim types.DimensionKey, kind types.EventKind, ev Event) types.RuleResult {
	key := dim.Collapse(r.Live)

	switch kind {
	case types.EventOrder:
		r.counter.Add(key, ev.TimestampNs, types.MetricOrderCount, decimal.NewFromInt(1))
	case types.EventTrade:
		volume := decimal.NewFromInt32(ev.Volume)
		price := decimal.NewFromFloat(ev.Price)
		r.counter.Add(key, ev.TimestampNs, types.MetricTradeVolume, volume)
		r.counter.Add(key, ev.TimestampNs, types.MetricTradeNotional, price.Mul(volume))
		r.counter.Add(key, ev.TimestampNs, types.MetricTradeCount, decimal.NewFromInt(1))
	case types.EventCancel:
		r.counter.Add(key, ev.TimestampNs, types.MetricCancelCount, decimal.NewFromInt(1))
	}

	day := stats.DayID(ev.TimestampNs)
	total := r.counter.Value(key, day, r.Metric)
	threshold := r.Threshold()
	if !total.GreaterThan(threshold) {
		return types.RuleResult{}
	}

	return types.RuleResult{
		Actions: []types.Action{{Kind: r.Action, Subject: subjectValue(key, r.Subject)}},
		Reasons: []string{r.RuleName + ": " + string(r.Metric) + " exceeded threshold"},
		Metadata: map[string]string{
			"metric":    string(r.Metric),
			"total":     total.String(),
			"threshold": threshold.String(),
		},
	}
}

// TickAll is a no-op for threshold rules — they have no auto-resume
// behavior; a breach stays latched until an operator clears it.
func (r *ThresholdRule) TickAll(nowNs int64) []types.RuleResult {
	return nil
}

// AdoptState transfers prev's daily counter into r, if prev is also a
// *ThresholdRule. Used when a configuration change reconstructs this
// rule with a new threshold/dimensions but must not reset the day's
// accumulation already in flight.
func (r *ThresholdRule) AdoptState(prev Rule) {
	p, ok := prev.(*ThresholdRule)
	if !ok {
		return
	}
	r.counter = p.counter
}

// Snapshot returns the rule's daily counter entries for serialization.
func (r *ThresholdRule) Snapshot() []stats.DailyEntry {
	return r.counter.Snapshot()
}

// Restore re-populates the rule's daily counter from snapshotted entries.
func (r *ThresholdRule) Restore(entries []stats.DailyEntry) {
	r.counter.Restore(entries)
}
