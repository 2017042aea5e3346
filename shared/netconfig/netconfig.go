// Package netconfig defines protocol constants shared between every peer.
// All peers in a session must agree on these values, so they live here
// rather than in per-binary config.
package netconfig

import "time"

// ProtocolVersion guards against peers with incompatible snapshot schemas
// joining the same session.
const ProtocolVersion = "wow4/1"

const (
	// DefaultTickRate is the simulation tick rate in Hz. Rendering may run
	// faster; replication never does.
	DefaultTickRate = 60

	// BroadcastInterval is the minimum wall-clock gap between two outbound
	// state snapshots, independent of tick rate.
	BroadcastInterval = 100 * time.Millisecond
)

// Staleness thresholds, in simulated seconds.
const (
	// StaleTimeout marks a replica inactive after this long without a
	// snapshot.
	StaleTimeout = 5.0

	// CleanupInterval is how long a replica may stay inactive before it is
	// destroyed, and also how often the cleanup sweep itself runs.
	CleanupInterval = 10.0
)

// Interpolation rates, as the inverse of the seconds a replica takes to
// reach a new target. The detail transform closes faster than the root so
// fine bob/tilt reads as crisp while gross movement stays smooth.
const (
	RootLerpRate   = 5.0
	DetailLerpRate = 12.0
)
