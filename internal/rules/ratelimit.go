package rules

import (
	"sync"
	"sync/atomic"

	"riskengine/internal/stats"
	"riskengine/pkg/types"
)

// RateLimitRule implements the rate-limit rule (spec.md §4.5.2): a
// rolling-window event counter per dimension key, suspending when the
// count exceeds Threshold and auto-resuming once a later Tick or
// Observe finds the count back at or below it. Unlike ThresholdRule,
// this rule's suspend is not permanent — it tracks an explicit
// exceeded/not-exceeded latch per key so it only emits the suspend or
// resume action on the actual transition, leaving final dedup
// idempotency to the shared action.Latch.
type RateLimitRule struct {
	RuleName    string
	Live        types.LiveDimensions
	WindowNs    int64
	NumBuckets  int
	SuspendKind types.ActionKind
	ResumeKind  types.ActionKind
	Subject     SubjectField
	Kind        types.EventKind

	threshold atomic.Int64

	mu       sync.Mutex
	windows  map[types.DimensionKey]*stats.RollingWindow
	exceeded map[types.DimensionKey]bool
}

// NewRateLimitRule constructs a rate-limit rule watching a single event
// kind.
func NewRateLimitRule(name string, live types.LiveDimensions, windowNs int64, numBuckets int, threshold int64, suspendKind, resumeKind types.ActionKind, subject SubjectField, kind types.EventKind) *RateLimitRule {
	r := &RateLimitRule{
		RuleName:    name,
		Live:        live,
		WindowNs:    windowNs,
		NumBuckets:  numBuckets,
		SuspendKind: suspendKind,
		ResumeKind:  resumeKind,
		Subject:     subject,
		Kind:        kind,
		windows:     make(map[types.DimensionKey]*stats.RollingWindow),
		exceeded:    make(map[types.DimensionKey]bool),
	}
	r.threshold.Store(threshold)
	return r
}

// Threshold returns the rule's current breach threshold.
func (r *RateLimitRule) Threshold() int64 { return r.threshold.Load() }

func (r *RateLimitRule) Name() string { return r.RuleName }

func (r *RateLimitRule) Kinds() []types.EventKind {
	return []types.EventKind{r.Kind}
}

func (r *RateLimitRule) windowFor(key types.DimensionKey) *stats.RollingWindow {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[key]
	if !ok {
		w = stats.NewRollingWindow(r.WindowNs, r.NumBuckets)
		r.windows[key] = w
	}
	return w
}

// evaluate applies the latched threshold check described in spec.md
// §4.5.2 to a freshly computed count for key, and returns the
// resulting action if the exceeded/not-exceeded state transitioned.
func (r *RateLimitRule) evaluate(key types.DimensionKey, count int64) types.RuleResult {
	r.mu.Lock()
	wasExceeded := r.exceeded[key]
	nowExceeded := count > r.threshold.Load()
	r.exceeded[key] = nowExceeded
	r.mu.Unlock()

	if nowExceeded == wasExceeded {
		return types.RuleResult{}
	}

	subject := subjectValue(key, r.Subject)
	if nowExceeded {
		return types.RuleResult{
			Actions: []types.Action{{Kind: r.SuspendKind, Subject: subject}},
			Reasons: []string{r.RuleName + ": rate limit exceeded"},
		}
	}
	return types.RuleResult{
		Actions: []types.Action{{Kind: r.ResumeKind, Subject: subject}},
		Reasons: []string{r.RuleName + ": rate back within limit"},
	}
}

func (r *RateLimitRule) Observe(dim types.DimensionKey, kind types.EventKind, ev Event) types.RuleResult {
	if kind != r.Kind {
		return types.RuleResult{}
	}
	key := dim.Collapse(r.Live)
	count := r.windowFor(key).Tick(int64(ev.TimestampNs))
	return r.evaluate(key, count)
}

// TickAll re-checks every dimension key this rule has seen against the
// current time, without recording a new event, so a count can fall back
// below threshold and auto-resume purely from the passage of time.
func (r *RateLimitRule) TickAll(nowNs int64) []types.RuleResult {
	var results []types.RuleResult
	for _, key := range r.Keys() {
		r.mu.Lock()
		w, ok := r.windows[key]
		r.mu.Unlock()
		if !ok {
			continue
		}
		if res := r.evaluate(key, w.Count(nowNs)); len(res.Actions) > 0 {
			results = append(results, res)
		}
	}
	return results
}

// AdoptState transfers prev's rolling windows and exceeded latches into
// r, if prev is also a *RateLimitRule. Used when a configuration change
// reconstructs this rule with a new threshold/window but must not reset
// counts already in flight.
func (r *RateLimitRule) AdoptState(prev Rule) {
	p, ok := prev.(*RateLimitRule)
	if !ok {
		return
	}
	p.mu.Lock()
	windows := p.windows
	exceeded := p.exceeded
	p.mu.Unlock()

	r.mu.Lock()
	r.windows = windows
	r.exceeded = exceeded
	r.mu.Unlock()
}

// Keys returns every dimension key this rule currently tracks a window
// for, so the engine's tick() can sweep all of them for auto-resume.
func (r *RateLimitRule) Keys() []types.DimensionKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.DimensionKey, 0, len(r.windows))
	for k := range r.windows {
		out = append(out, k)
	}
	return out
}
