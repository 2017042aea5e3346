// Package network is the replication core: the transport abstraction, the
// remote-replica registry, and the snapshot broadcaster. Rendering, input,
// and peer discovery live elsewhere; this package only moves and smooths
// vehicle state.
package network

// Session exposes what the replication layer needs to know about the
// current lobby. Implementations must be safe to call from the simulation
// loop at any time after construction.
type Session interface {
	// LocalPeerID is stable for the lifetime of this peer's session.
	LocalPeerID() string

	// HostID is the designated host's peer id.
	HostID() string

	// IsHost reports whether the local peer is the session host.
	IsHost() bool

	// Ready reports whether a live session is available. Evaluated once by
	// the registry at construction to pick networked vs single-simulation
	// mode.
	Ready() bool

	// PeerIDs returns the ids of every current session member, the local
	// peer included.
	PeerIDs() []string

	// Reachable is the number of peers a Broadcast would currently reach:
	// connected clients for the host, 1 or 0 for everyone else depending
	// on whether the host link is open.
	Reachable() int

	// OnPeersChanged registers the membership-change callback. Callbacks
	// run on the delivery goroutine serialized with OnMessage handlers.
	OnPeersChanged(fn func(peerIDs []string))
}

// Transport is the black-box message layer. Broadcast is best effort: no
// delivery or ordering guarantee, and a returned error means this send was
// dropped, nothing more.
type Transport interface {
	Broadcast(payload []byte) error

	// OnMessage registers the handler invoked with every inbound payload.
	// Handlers run to completion before the next delivery.
	OnMessage(fn func(fromID string, payload []byte))

	// Pump delivers queued inbound messages and membership callbacks on
	// the caller's goroutine, one at a time. The simulation loop calls it
	// once per frame, which is what keeps the whole replication core
	// single-threaded: socket goroutines only ever enqueue.
	Pump()

	Session() Session

	Close() error
}
