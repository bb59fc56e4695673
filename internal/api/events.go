package api

import (
	"context"
	"time"

	"riskengine/pkg/types"
)

// Sink is the subset of the engine's action-delivery contract this
// package depends on, so it need not import the engine package to wrap
// its configured sink.
type Sink interface {
	Deliver(ctx context.Context, a types.Action, reasons []string) error
}

// BroadcastSink wraps a Sink so every action it delivers is also pushed
// to every connected WebSocket client before being forwarded downstream
// — the inspection API never gates or delays delivery, it only observes
// it.
type BroadcastSink struct {
	next Sink
	hub  *Hub
}

// NewBroadcastSink wraps next so its deliveries are mirrored to hub.
func NewBroadcastSink(next Sink, hub *Hub) *BroadcastSink {
	return &BroadcastSink{next: next, hub: hub}
}

// Deliver forwards a to the wrapped sink and broadcasts it to every
// connected inspection client, regardless of whether the wrapped
// delivery succeeds — the event did happen even if telling the
// downstream system about it failed.
func (s *BroadcastSink) Deliver(ctx context.Context, a types.Action, reasons []string) error {
	s.hub.BroadcastAction(NewActionEvent(a, reasons, time.Now()))
	return s.next.Deliver(ctx, a, reasons)
}
