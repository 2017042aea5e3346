package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JayBlankenship/WorldofWater4/shared/messages"
	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

func newKcpHostForTest() *KcpTransport {
	return &KcpTransport{
		log:     testLog,
		isHost:  true,
		localID: "host",
		hostID:  "host",
		peers:   make(map[string]*kcpLink),
		roster:  []string{"host"},
		inbox:   make(chan func(), inboxSize),
	}
}

func TestKcpHost_RejectsIncompatibleProtocol(t *testing.T) {
	hostSide, peerSide := net.Pipe()
	defer peerSide.Close()

	tr := newKcpHostForTest()
	done := make(chan struct{})
	go func() {
		tr.hostReadLoop(&kcpLink{conn: hostSide})
		close(done)
	}()

	peer := &kcpLink{conn: peerSide}
	hello, err := messages.Encode(messages.KindHello, &messages.Hello{PeerID: "p1", Name: "p", Version: "wow4/999"})
	require.NoError(t, err)
	require.NoError(t, peer.writeFrame(hello))

	frame, err := peer.readFrame()
	require.NoError(t, err, "rejected peer must be told, not left waiting")
	kind, body, err := messages.DecodeKind(frame)
	require.NoError(t, err)
	require.Equal(t, messages.KindReject, kind)
	var rej messages.Reject
	require.NoError(t, messages.DecodeBody(body, &rej))
	assert.NotEmpty(t, rej.Reason)

	// The host hangs up after rejecting.
	_, err = peer.readFrame()
	assert.Error(t, err)

	<-done
	assert.Equal(t, []string{"host"}, tr.PeerIDs())
}

func TestKcpHost_AcceptsMatchingProtocol(t *testing.T) {
	hostSide, peerSide := net.Pipe()
	defer hostSide.Close()
	defer peerSide.Close()

	tr := newKcpHostForTest()
	go tr.hostReadLoop(&kcpLink{conn: hostSide})

	peer := &kcpLink{conn: peerSide}
	hello, err := messages.Encode(messages.KindHello, &messages.Hello{PeerID: "p1", Name: "p", Version: netconfig.ProtocolVersion})
	require.NoError(t, err)
	require.NoError(t, peer.writeFrame(hello))

	frame, err := peer.readFrame()
	require.NoError(t, err)
	kind, body, err := messages.DecodeKind(frame)
	require.NoError(t, err)
	require.Equal(t, messages.KindRoster, kind)
	var roster messages.Roster
	require.NoError(t, messages.DecodeBody(body, &roster))
	assert.Equal(t, "host", roster.HostID)
	assert.ElementsMatch(t, []string{"host", "p1"}, roster.PeerIDs)
}

func TestKcpClient_RejectEndsJoinAttempt(t *testing.T) {
	hostSide, peerSide := net.Pipe()
	defer hostSide.Close()

	tr := &KcpTransport{
		log:     testLog,
		localID: "p1",
		host:    &kcpLink{conn: peerSide},
		inbox:   make(chan func(), inboxSize),
	}
	done := make(chan struct{})
	go func() {
		tr.clientReadLoop(tr.host)
		close(done)
	}()

	rej, err := messages.Encode(messages.KindReject, &messages.Reject{Reason: "incompatible protocol version"})
	require.NoError(t, err)
	require.NoError(t, (&kcpLink{conn: hostSide}).writeFrame(rej))

	<-done
	assert.False(t, tr.Ready())
	assert.False(t, tr.WaitReady(100*time.Millisecond))
	assert.Equal(t, 0, tr.Reachable())
	assert.Error(t, tr.Broadcast([]byte{1}), "the rejected link is gone, sends must fail")
}
