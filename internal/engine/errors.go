package engine

import "errors"

// Sentinel errors implementing the engine's three failure classes
// (spec.md §7): malformed events, invalid configuration, and snapshot
// decode failures. Callers distinguish them with errors.Is.
var (
	// ErrMalformedEvent wraps a validation failure on an incoming
	// order/trade/cancel (non-finite numeric, non-positive volume,
	// missing identifier).
	ErrMalformedEvent = errors.New("engine: malformed event")

	// ErrConfigInvalid wraps a rejected configuration value (e.g. an
	// update_rate_limit/update_volume_limit call naming an unknown or
	// wrongly-typed rule).
	ErrConfigInvalid = errors.New("engine: invalid configuration")

	// ErrSnapshotVersion wraps a snapshot blob whose version tag the
	// running binary does not understand.
	ErrSnapshotVersion = errors.New("engine: unsupported snapshot version")

	// ErrSnapshotTruncated wraps a snapshot blob that ends before the
	// format it claims to encode is fully read.
	ErrSnapshotTruncated = errors.New("engine: truncated snapshot")
)
