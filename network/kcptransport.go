package network

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kcp "github.com/xtaci/kcp-go/v5"

	"github.com/JayBlankenship/WorldofWater4/shared/messages"
	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

const (
	maxFrameSize    = 64 * 1024
	kcpWriteTimeout = time.Second
)

// kcpLink wraps one KCP session with a write lock so concurrent sends
// never interleave frames.
type kcpLink struct {
	conn net.Conn
	wmu  sync.Mutex
}

// writeFrame sends one length-prefixed payload.
func (l *kcpLink) writeFrame(payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	l.wmu.Lock()
	defer l.wmu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(kcpWriteTimeout))
	if _, err := l.conn.Write(header[:]); err != nil {
		return err
	}
	_, err := l.conn.Write(payload)
	return err
}

// readFrame blocks for the next length-prefixed payload.
func (l *kcpLink) readFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(l.conn, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || size > maxFrameSize {
		return nil, fmt.Errorf("bad frame size %d", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(l.conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// KcpTransport is the low-latency alternative to WsTransport: the same
// host-relayed star topology over KCP (reliable UDP) with length-prefixed
// msgpack frames.
type KcpTransport struct {
	log     zerolog.Logger
	isHost  bool
	localID string
	hostID  string
	name    string

	mu     sync.Mutex
	ready  bool
	closed bool
	host   *kcpLink            // non-host: link to the host
	peers  map[string]*kcpLink // host: joined peers by id
	roster []string

	listener *kcp.Listener
	inbox    chan func()

	onMessage func(fromID string, payload []byte)
	onPeers   func(peerIDs []string)
}

// NewKcpHost starts a host transport listening on addr ("0.0.0.0:port").
func NewKcpHost(addr, localID, name string, log zerolog.Logger) (*KcpTransport, error) {
	listener, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("kcp listen %s: %w", addr, err)
	}

	t := &KcpTransport{
		log:      log.With().Str("sys", "kcp").Str("mode", "host").Logger(),
		isHost:   true,
		localID:  localID,
		hostID:   localID,
		name:     name,
		peers:    make(map[string]*kcpLink),
		roster:   []string{localID},
		listener: listener,
		inbox:    make(chan func(), inboxSize),
		ready:    true,
	}

	go t.acceptLoop()
	t.log.Info().Str("addr", addr).Str("peer", localID).Msg("hosting session")
	return t, nil
}

// NewKcpClient connects a non-host transport to the host at addr.
func NewKcpClient(addr, localID, name string, log zerolog.Logger) (*KcpTransport, error) {
	conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("kcp dial %s: %w", addr, err)
	}

	t := &KcpTransport{
		log:     log.With().Str("sys", "kcp").Str("mode", "client").Logger(),
		localID: localID,
		name:    name,
		host:    &kcpLink{conn: conn},
		inbox:   make(chan func(), inboxSize),
	}

	hello, err := messages.Encode(messages.KindHello, &messages.Hello{
		PeerID:  localID,
		Name:    name,
		Version: netconfig.ProtocolVersion,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := t.host.writeFrame(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("hello: %w", err)
	}

	go t.clientReadLoop(t.host)
	t.log.Info().Str("addr", addr).Str("peer", localID).Msg("joining session")
	return t, nil
}

func (t *KcpTransport) acceptLoop() {
	for {
		conn, err := t.listener.AcceptKCP()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.log.Error().Err(err).Msg("accept failed")
			}
			return
		}
		go t.hostReadLoop(&kcpLink{conn: conn})
	}
}

// hostReadLoop serves one peer link: a Hello first, then envelopes that are
// relayed to the rest of the session and delivered locally.
func (t *KcpTransport) hostReadLoop(link *kcpLink) {
	defer link.conn.Close()

	frame, err := link.readFrame()
	if err != nil {
		return
	}
	kind, body, err := messages.DecodeKind(frame)
	if err != nil || kind != messages.KindHello {
		t.log.Warn().Msg("peer sent no hello, dropping connection")
		return
	}
	var hello messages.Hello
	if err := messages.DecodeBody(body, &hello); err != nil {
		return
	}
	if hello.Version != netconfig.ProtocolVersion {
		t.log.Warn().Str("peer", hello.PeerID).Str("version", hello.Version).
			Msg("rejecting peer with incompatible protocol")
		if frame, err := messages.Encode(messages.KindReject, &messages.Reject{Reason: "incompatible protocol version"}); err == nil {
			_ = link.writeFrame(frame)
		}
		return
	}

	t.mu.Lock()
	t.peers[hello.PeerID] = link
	t.rebuildRosterLocked()
	roster := append([]string(nil), t.roster...)
	t.mu.Unlock()

	t.log.Info().Str("peer", hello.PeerID).Str("name", hello.Name).Msg("peer joined")
	t.shareRoster(roster)
	t.enqueuePeersChanged(roster)

	for {
		frame, err := link.readFrame()
		if err != nil {
			break
		}
		kind, body, err := messages.DecodeKind(frame)
		if err != nil || kind != messages.KindEnvelope {
			continue
		}
		var env messages.Envelope
		if err := messages.DecodeBody(body, &env); err != nil {
			continue
		}

		// The link, not the envelope, names the sender.
		t.relay(hello.PeerID, env.Payload)
		t.enqueueDelivery(hello.PeerID, env.Payload)
	}

	t.mu.Lock()
	delete(t.peers, hello.PeerID)
	t.rebuildRosterLocked()
	roster = append([]string(nil), t.roster...)
	t.mu.Unlock()

	t.log.Info().Str("peer", hello.PeerID).Msg("peer left")
	t.shareRoster(roster)
	t.enqueuePeersChanged(roster)
}

func (t *KcpTransport) clientReadLoop(link *kcpLink) {
	for {
		frame, err := link.readFrame()
		if err != nil {
			t.mu.Lock()
			wasClosed := t.closed
			t.host = nil
			t.ready = false
			t.mu.Unlock()
			if !wasClosed {
				t.log.Info().Err(err).Msg("lost connection to host")
			}
			return
		}

		kind, body, err := messages.DecodeKind(frame)
		if err != nil {
			continue
		}
		switch kind {
		case messages.KindRoster:
			var roster messages.Roster
			if err := messages.DecodeBody(body, &roster); err != nil {
				continue
			}
			t.mu.Lock()
			t.hostID = roster.HostID
			t.roster = roster.PeerIDs
			t.ready = true
			ids := append([]string(nil), t.roster...)
			t.mu.Unlock()
			t.enqueuePeersChanged(ids)
		case messages.KindEnvelope:
			var env messages.Envelope
			if err := messages.DecodeBody(body, &env); err != nil {
				continue
			}
			if env.FromID != t.localID {
				t.enqueueDelivery(env.FromID, env.Payload)
			}
		case messages.KindReject:
			var rej messages.Reject
			if err := messages.DecodeBody(body, &rej); err != nil {
				continue
			}
			t.log.Warn().Str("reason", rej.Reason).Msg("host rejected us")
			t.mu.Lock()
			t.closed = true
			t.ready = false
			t.host = nil
			t.mu.Unlock()
			_ = link.conn.Close()
			return
		}
	}
}

func (t *KcpTransport) relay(fromID string, payload []byte) {
	frame, err := messages.Encode(messages.KindEnvelope, &messages.Envelope{FromID: fromID, Payload: payload})
	if err != nil {
		return
	}
	t.mu.Lock()
	links := make(map[string]*kcpLink, len(t.peers))
	for id, l := range t.peers {
		links[id] = l
	}
	t.mu.Unlock()

	for id, l := range links {
		if id == fromID {
			continue
		}
		if err := l.writeFrame(frame); err != nil {
			t.log.Debug().Err(err).Str("peer", id).Msg("relay failed")
		}
	}
}

func (t *KcpTransport) shareRoster(ids []string) {
	frame, err := messages.Encode(messages.KindRoster, &messages.Roster{HostID: t.localID, PeerIDs: ids})
	if err != nil {
		return
	}
	t.mu.Lock()
	links := make([]*kcpLink, 0, len(t.peers))
	for _, l := range t.peers {
		links = append(links, l)
	}
	t.mu.Unlock()
	for _, l := range links {
		if err := l.writeFrame(frame); err != nil {
			t.log.Debug().Err(err).Msg("roster send failed")
		}
	}
}

func (t *KcpTransport) rebuildRosterLocked() {
	roster := make([]string, 0, len(t.peers)+1)
	roster = append(roster, t.localID)
	for id := range t.peers {
		roster = append(roster, id)
	}
	t.roster = roster
}

func (t *KcpTransport) enqueueDelivery(fromID string, payload []byte) {
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

func (t *KcpTransport) enqueuePeersChanged(ids []string) {
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
func (t *KcpTransport) WaitReady(timeout time.Duration) bool {
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

// Broadcast sends a payload toward every other session member.
func (t *KcpTransport) Broadcast(payload []byte) error {
	frame, err := messages.Encode(messages.KindEnvelope, &messages.Envelope{FromID: t.localID, Payload: payload})
	if err != nil {
		return err
	}

	if t.isHost {
		t.mu.Lock()
		links := make(map[string]*kcpLink, len(t.peers))
		for id, l := range t.peers {
			links[id] = l
		}
		t.mu.Unlock()

		var firstErr error
		for id, l := range links {
			if err := l.writeFrame(frame); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("send to %s: %w", id, err)
			}
		}
		return firstErr
	}

	t.mu.Lock()
	link := t.host
	t.mu.Unlock()
	if link == nil {
		return fmt.Errorf("no connection to host")
	}
	return link.writeFrame(frame)
}

func (t *KcpTransport) OnMessage(fn func(fromID string, payload []byte)) {
	t.onMessage = fn
}

// Pump drains queued deliveries on the caller's goroutine.
func (t *KcpTransport) Pump() {
	for {
		select {
		case call := <-t.inbox:
			call()
		default:
			return
		}
	}
}

func (t *KcpTransport) Session() Session { return t }

func (t *KcpTransport) LocalPeerID() string { return t.localID }
func (t *KcpTransport) IsHost() bool        { return t.isHost }

func (t *KcpTransport) HostID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hostID
}

func (t *KcpTransport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready && !t.closed
}

func (t *KcpTransport) PeerIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.roster...)
}

func (t *KcpTransport) Reachable() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isHost {
		return len(t.peers)
	}
	if t.host != nil && t.ready {
		return 1
	}
	return 0
}

func (t *KcpTransport) OnPeersChanged(fn func(peerIDs []string)) {
	t.onPeers = fn
}

// Close tears down every link and stops the listener.
func (t *KcpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.ready = false

	var firstErr error
	if t.listener != nil {
		firstErr = t.listener.Close()
	}
	if t.host != nil {
		if err := t.host.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		t.host = nil
	}
	for _, l := range t.peers {
		if err := l.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.peers = map[string]*kcpLink{}
	return firstErr
}
