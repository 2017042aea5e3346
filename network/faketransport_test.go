package network

import (
	"github.com/JayBlankenship/WorldofWater4/shared/messages"
)

// fakeTransport is an in-memory Transport+Session for tests. Delivery is
// immediate: deliver calls the registered handler on the caller's
// goroutine, which matches how Pump behaves on the simulation loop.
type fakeTransport struct {
	localID string
	hostID  string
	ready   bool
	peers   []string

	reachable int
	sendErr   error
	sent      [][]byte

	onMessage      func(fromID string, payload []byte)
	onPeersChanged func(peerIDs []string)
}

func newFakeTransport(localID, hostID string, peers ...string) *fakeTransport {
	return &fakeTransport{
		localID:   localID,
		hostID:    hostID,
		ready:     true,
		peers:     peers,
		reachable: len(peers) - 1,
	}
}

func (f *fakeTransport) Broadcast(payload []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) OnMessage(fn func(fromID string, payload []byte)) { f.onMessage = fn }
func (f *fakeTransport) Pump()                                            {}
func (f *fakeTransport) Session() Session                                 { return f }
func (f *fakeTransport) Close() error                                     { return nil }

func (f *fakeTransport) LocalPeerID() string { return f.localID }
func (f *fakeTransport) HostID() string      { return f.hostID }
func (f *fakeTransport) IsHost() bool        { return f.localID == f.hostID }
func (f *fakeTransport) Ready() bool         { return f.ready }
func (f *fakeTransport) PeerIDs() []string   { return f.peers }
func (f *fakeTransport) Reachable() int      { return f.reachable }

func (f *fakeTransport) OnPeersChanged(fn func(peerIDs []string)) { f.onPeersChanged = fn }

// deliver injects an inbound payload as if Pump had drained it.
func (f *fakeTransport) deliver(fromID string, payload []byte) {
	if f.onMessage != nil {
		f.onMessage(fromID, payload)
	}
}

// changePeers simulates a membership change pushed by the transport.
func (f *fakeTransport) changePeers(peers ...string) {
	f.peers = peers
	f.reachable = len(peers) - 1
	if f.onPeersChanged != nil {
		f.onPeersChanged(peers)
	}
}

// sentSnapshots decodes every sent payload that is a state snapshot.
func (f *fakeTransport) sentSnapshots() []messages.StateSnapshot {
	var out []messages.StateSnapshot
	for _, p := range f.sent {
		kind, body, err := messages.DecodeKind(p)
		if err != nil || kind != messages.KindSnapshot {
			continue
		}
		var snap messages.StateSnapshot
		if err := messages.DecodeBody(body, &snap); err == nil {
			out = append(out, snap)
		}
	}
	return out
}
