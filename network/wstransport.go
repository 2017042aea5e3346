package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"

	"github.com/JayBlankenship/WorldofWater4/shared/messages"
	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

const (
	inboxSize = 512

	// wsWriteTimeout bounds every outbound write so a stalled peer can
	// never wedge the sim loop. Matches the kcp adapter's write deadline.
	wsWriteTimeout = time.Second
)

// WsTransport carries session traffic over websockets in a star topology:
// the host runs the accept loop and relays every envelope to the other
// peers, so a Broadcast reaches the whole session with one hop at most.
//
// necs router callbacks are process-global, so a process runs at most one
// WsTransport.
type WsTransport struct {
	log     zerolog.Logger
	isHost  bool
	localID string
	hostID  string
	name    string

	mu      sync.Mutex
	ready   bool
	closed  bool
	conn    *websocket.Conn                  // non-host: link to the host
	clients map[string]*router.NetworkClient // host: joined peers by id
	joined  map[*router.NetworkClient]string // host: reverse index
	roster  []string

	inbox chan func()

	onMessage func(fromID string, payload []byte)
	onPeers   func(peerIDs []string)
}

// NewWsHost starts a host transport listening on port. The port is checked
// up front so an unbindable port fails here instead of leaving a host that
// looks ready but accepts nobody.
func NewWsHost(port uint, localID, name string, log zerolog.Logger) (*WsTransport, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("ws listen :%d: %w", port, err)
	}
	_ = l.Close()

	t := &WsTransport{
		log:     log.With().Str("sys", "ws").Str("mode", "host").Logger(),
		isHost:  true,
		localID: localID,
		hostID:  localID,
		name:    name,
		clients: make(map[string]*router.NetworkClient),
		joined:  make(map[*router.NetworkClient]string),
		roster:  []string{localID},
		inbox:   make(chan func(), inboxSize),
		ready:   true,
	}
	t.registerHostCallbacks()

	go func() {
		transport := transports.NewWsServerTransport(port, "", nil)
		if err := transport.Start(); err != nil {
			t.log.Error().Err(err).Msg("host transport stopped")
			t.mu.Lock()
			t.ready = false
			t.closed = true
			t.mu.Unlock()
		}
	}()

	t.log.Info().Uint("port", port).Str("peer", localID).Msg("hosting session")
	return t, nil
}

// NewWsClient connects a non-host transport to the host at address.
func NewWsClient(address, localID, name string, log zerolog.Logger) *WsTransport {
	t := &WsTransport{
		log:     log.With().Str("sys", "ws").Str("mode", "client").Logger(),
		localID: localID,
		name:    name,
		inbox:   make(chan func(), inboxSize),
	}
	t.registerClientCallbacks()

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			t.mu.Lock()
			t.conn = conn
			t.mu.Unlock()
		})
		if err != nil {
			t.log.Error().Err(err).Msg("connection failed")
		}
	}()

	t.log.Info().Str("address", address).Str("peer", localID).Msg("joining session")
	return t
}

func (t *WsTransport) registerHostCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		// Nothing yet; membership starts at Hello.
		t.log.Debug().Str("conn", client.Id()).Msg("connection opened, awaiting hello")
	})

	router.On(func(client *router.NetworkClient, hello messages.Hello) {
		if hello.Version != netconfig.ProtocolVersion {
			t.log.Warn().
				Str("peer", hello.PeerID).
				Str("version", hello.Version).
				Msg("rejecting peer with incompatible protocol")
			if err := client.SendMessage(messages.Reject{Reason: "incompatible protocol version"}); err != nil {
				t.log.Debug().Err(err).Msg("reject send failed")
			}
			_ = client.Close(websocket.StatusPolicyViolation, "incompatible protocol version")
			return
		}

		t.mu.Lock()
		t.clients[hello.PeerID] = client
		t.joined[client] = hello.PeerID
		t.rebuildRosterLocked()
		roster := t.rosterLocked()
		t.mu.Unlock()

		t.log.Info().Str("peer", hello.PeerID).Str("name", hello.Name).Msg("peer joined")
		t.shareRoster(roster)
		t.enqueuePeersChanged(roster)
	})

	router.On(func(client *router.NetworkClient, env messages.Envelope) {
		t.mu.Lock()
		fromID, ok := t.joined[client]
		clients := t.snapshotClientsLocked()
		t.mu.Unlock()
		if !ok {
			return // never said hello
		}

		// The connection, not the envelope, names the sender.
		for id, c := range clients {
			if id == fromID {
				continue
			}
			relay := messages.Envelope{FromID: fromID, Payload: env.Payload}
			if err := c.SendMessage(relay); err != nil {
				t.log.Debug().Err(err).Str("peer", id).Msg("relay failed")
			}
		}
		t.enqueueDelivery(fromID, env.Payload)
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		t.mu.Lock()
		peerID, ok := t.joined[client]
		if ok {
			delete(t.joined, client)
			delete(t.clients, peerID)
			t.rebuildRosterLocked()
		}
		roster := t.rosterLocked()
		t.mu.Unlock()
		if !ok {
			return
		}

		t.log.Info().Str("peer", peerID).AnErr("cause", err).Msg("peer left")
		t.shareRoster(roster)
		t.enqueuePeersChanged(roster)
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		t.log.Debug().Err(err).Msg("transport error")
	})
}

func (t *WsTransport) registerClientCallbacks() {
	router.OnConnect(func(_ *router.NetworkClient) {
		payload, err := router.Serialize(messages.Hello{
			PeerID:  t.localID,
			Name:    t.name,
			Version: netconfig.ProtocolVersion,
		})
		if err != nil {
			t.log.Error().Err(err).Msg("hello serialize failed")
			return
		}

		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
			defer cancel()
			if err := conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
				t.log.Error().Err(err).Msg("hello send failed")
			}
		}
	})

	router.On(func(_ *router.NetworkClient, rej messages.Reject) {
		t.log.Warn().Str("reason", rej.Reason).Msg("host rejected us")
		t.mu.Lock()
		t.closed = true
		t.ready = false
		conn := t.conn
		t.conn = nil
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "rejected")
		}
	})

	router.On(func(_ *router.NetworkClient, roster messages.Roster) {
		t.mu.Lock()
		t.hostID = roster.HostID
		t.roster = roster.PeerIDs
		t.ready = true
		ids := t.rosterLocked()
		t.mu.Unlock()

		t.enqueuePeersChanged(ids)
	})

	router.On(func(_ *router.NetworkClient, env messages.Envelope) {
		if env.FromID == t.localID {
			return // relay echo
		}
		t.enqueueDelivery(env.FromID, env.Payload)
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		t.log.Info().AnErr("cause", err).Msg("lost connection to host")
		t.mu.Lock()
		t.conn = nil
		t.ready = false
		t.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		t.log.Debug().Err(err).Msg("transport error")
	})
}

// shareRoster sends the membership list to every joined peer. Host only.
func (t *WsTransport) shareRoster(ids []string) {
	msg := messages.Roster{HostID: t.localID, PeerIDs: ids}
	t.mu.Lock()
	clients := t.snapshotClientsLocked()
	t.mu.Unlock()
	for id, c := range clients {
		if err := c.SendMessage(msg); err != nil {
			t.log.Debug().Err(err).Str("peer", id).Msg("roster send failed")
		}
	}
}

func (t *WsTransport) rebuildRosterLocked() {
	roster := make([]string, 0, len(t.clients)+1)
	roster = append(roster, t.localID)
	for id := range t.clients {
		roster = append(roster, id)
	}
	t.roster = roster
}

func (t *WsTransport) rosterLocked() []string {
	out := make([]string, len(t.roster))
	copy(out, t.roster)
	return out
}

func (t *WsTransport) snapshotClientsLocked() map[string]*router.NetworkClient {
	out := make(map[string]*router.NetworkClient, len(t.clients))
	for id, c := range t.clients {
		out[id] = c
	}
	return out
}

func (t *WsTransport) enqueueDelivery(fromID string, payload []byte) {
	select {
	case t.inbox <- func() {
		if t.onMessage != nil {
			t.onMessage(fromID, payload)
		}
	}:
	default:
		t.log.Warn().Str("peer", fromID).Msg("inbox full, dropping payload")
	}
}

func (t *WsTransport) enqueuePeersChanged(ids []string) {
	select {
	case t.inbox <- func() {
		if t.onPeers != nil {
			t.onPeers(ids)
		}
	}:
	default:
		t.log.Warn().Msg("inbox full, dropping membership change")
	}
}

// WaitReady blocks until the session is usable or the timeout passes.
// Hosts are ready immediately; clients once the first roster arrives.
func (t *WsTransport) WaitReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		ready := t.ready
		t.mu.Unlock()
		if ready {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// Broadcast sends a payload toward every other session member: hosts fan
// out directly, non-hosts send one envelope to the host for relay.
func (t *WsTransport) Broadcast(payload []byte) error {
	env := messages.Envelope{FromID: t.localID, Payload: payload}

	if t.isHost {
		t.mu.Lock()
		clients := t.snapshotClientsLocked()
		t.mu.Unlock()

		var firstErr error
		for id, c := range clients {
			if err := c.SendMessage(env); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("send to %s: %w", id, err)
			}
		}
		return firstErr
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection to host")
	}

	data, err := router.Serialize(env)
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, data)
}

func (t *WsTransport) OnMessage(fn func(fromID string, payload []byte)) {
	t.onMessage = fn
}

// Pump drains queued deliveries on the caller's goroutine.
func (t *WsTransport) Pump() {
	for {
		select {
		case call := <-t.inbox:
			call()
		default:
			return
		}
	}
}

func (t *WsTransport) Session() Session { return t }

// Session implementation.

func (t *WsTransport) LocalPeerID() string { return t.localID }
func (t *WsTransport) IsHost() bool        { return t.isHost }

func (t *WsTransport) HostID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hostID
}

func (t *WsTransport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready && !t.closed
}

func (t *WsTransport) PeerIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rosterLocked()
}

func (t *WsTransport) Reachable() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isHost {
		return len(t.clients)
	}
	if t.conn != nil && t.ready {
		return 1
	}
	return 0
}

func (t *WsTransport) OnPeersChanged(fn func(peerIDs []string)) {
	t.onPeers = fn
}

// Close tears down the peer links. The host's listener keeps running until
// process exit, matching how the rest of the stack shuts down.
func (t *WsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.ready = false
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "leaving session")
		t.conn = nil
		return err
	}
	return nil
}
