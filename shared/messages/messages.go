// Package messages defines the wire schema exchanged between peers: the
// per-vehicle state snapshot, host-authoritative weather events, and the
// transport-level session bookkeeping messages.
package messages

import "github.com/JayBlankenship/WorldofWater4/shared/gamemath"

// StateSnapshot is one broadcast payload describing the sender's vehicle at
// a point in time. It is immutable once sent; receivers treat the newest
// applied snapshot as the whole truth ("last snapshot wins").
type StateSnapshot struct {
	// Seq increases by one per broadcast from a given peer. Receivers drop
	// snapshots that are not newer than the last applied one, so delivery
	// reordering can never regress a replica.
	Seq uint32

	RootPos gamemath.Vec3
	RootRot gamemath.Euler

	// HasDetail marks whether the detail transform (superstructure bob and
	// tilt, replicated independently of the hull) is present.
	HasDetail bool
	DetailPos gamemath.Vec3
	DetailRot gamemath.Euler

	// Surge toggles the sender's surge effect on its replicas.
	Surge bool

	// SentAt is the sender's clock in unix milliseconds, informational only.
	SentAt int64
}

// HasRoot reports whether the snapshot carries a usable root transform.
// Snapshots without one are malformed and must be discarded.
func (s *StateSnapshot) HasRoot() bool {
	return s.RootPos.IsFinite() && s.RootRot.IsFinite()
}

// ZoneSpawn describes one disturbance zone the host has decided to spawn.
type ZoneSpawn struct {
	Center    gamemath.Vec3
	Radius    float64
	Intensity float64
	Phase     float64
	TTL       float64
}

// WeatherEvent carries a host weather decision to the other peers, so every
// peer's ocean evolves from the same draws instead of diverging.
type WeatherEvent struct {
	TargetAmplitude float64
	TargetSpeed     float64
	Transition      float64 // seconds to ease toward the new targets
	Zone            *ZoneSpawn
}

// Hello opens a transport connection: the joining peer introduces itself.
type Hello struct {
	PeerID  string
	Name    string
	Version string
}

// Reject is the host's answer to a Hello it will not accept. The peer is
// expected to give up instead of waiting for a roster that never comes.
type Reject struct {
	Reason string
}

// Roster is sent by the host whenever session membership changes.
type Roster struct {
	HostID  string
	PeerIDs []string
}

// Envelope wraps an opaque replication payload with its origin for relay
// through the host. The transport never looks inside Payload.
type Envelope struct {
	FromID  string
	Payload []byte
}
