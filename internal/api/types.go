package api

import (
	"time"

	"riskengine/internal/action"
	"riskengine/internal/metrics"
	"riskengine/pkg/types"
)

// ActionEvent is the wire representation of one admitted action, the
// unit broadcast to every connected WebSocket client as the engine
// delivers it to its sink.
type ActionEvent struct {
	Kind      types.ActionKind `json:"kind"`
	Subject   string           `json:"subject"`
	Reasons   []string         `json:"reasons,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewActionEvent builds the wire event for an admitted action.
func NewActionEvent(a types.Action, reasons []string, at time.Time) ActionEvent {
	return ActionEvent{
		Kind:      a.Kind,
		Subject:   a.Subject,
		Reasons:   reasons,
		Timestamp: at,
	}
}

// LatchEntry is the wire representation of one suspended (subject,
// family) pair.
type LatchEntry struct {
	Subject string             `json:"subject"`
	Family  types.ActionFamily `json:"family"`
	State   string             `json:"state"`
}

// Diagnostics is the complete point-in-time read-only state the
// inspection API exposes: the engine's counters, its live rule set,
// and every currently suspended subject.
type Diagnostics struct {
	Timestamp time.Time        `json:"timestamp"`
	Metrics   metrics.Snapshot `json:"metrics"`
	Rules     []string         `json:"rules"`
	Suspended []LatchEntry     `json:"suspended"`
}

func convertLatchEntries(entries []action.Entry) []LatchEntry {
	out := make([]LatchEntry, len(entries))
	for i, e := range entries {
		out[i] = LatchEntry{Subject: e.Subject, Family: e.Family, State: string(e.State)}
	}
	return out
}

// StateProvider is the read-only view of a running engine the API
// serves. *engine.Engine satisfies this without the api package
// importing engine, mirroring the teacher's MarketSnapshotProvider
// decoupling of its dashboard from the concrete orchestrator.
type StateProvider interface {
	Metrics() metrics.Snapshot
	RuleNames() []string
	LatchSnapshot() []action.Entry
}

// BuildDiagnostics aggregates state from the engine into one inspection
// snapshot.
func BuildDiagnostics(provider StateProvider, now time.Time) Diagnostics {
	return Diagnostics{
		Timestamp: now,
		Metrics:   provider.Metrics(),
		Rules:     provider.RuleNames(),
		Suspended: convertLatchEntries(provider.LatchSnapshot()),
	}
}
