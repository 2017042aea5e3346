package network

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JayBlankenship/WorldofWater4/components"
	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
	"github.com/JayBlankenship/WorldofWater4/shared/messages"
	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

// testClock stands in for the wall clock so throttle behavior is exact.
type testClock struct{ t time.Time }

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testState(x float64) LocalState {
	return LocalState{
		Root:      components.Pose{Pos: gamemath.Vec3{X: x}},
		HasDetail: true,
		Detail:    components.Pose{Pos: gamemath.Vec3{X: x, Y: 2}},
	}
}

func TestBroadcaster_ThrottlesToOnePerInterval(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "a")
	clock := newTestClock()
	b := NewBroadcaster(ft, testLog)
	b.now = clock.now

	// A 60 Hz loop attempting every tick for one second of wall time.
	tick := time.Second / 60
	sends := 0
	for i := 0; i < 60; i++ {
		if b.CaptureAndSend(testState(float64(i))) {
			sends++
		}
		clock.advance(tick)
	}

	expected := int(time.Second / netconfig.BroadcastInterval)
	assert.LessOrEqual(t, sends, expected+1)
	assert.GreaterOrEqual(t, sends, expected)
	assert.Len(t, ft.sent, sends)
}

func TestBroadcaster_SeqStrictlyIncreases(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "a")
	clock := newTestClock()
	b := NewBroadcaster(ft, testLog)
	b.now = clock.now

	for i := 0; i < 5; i++ {
		require.True(t, b.CaptureAndSend(testState(float64(i))))
		clock.advance(netconfig.BroadcastInterval)
	}

	snaps := ft.sentSnapshots()
	require.Len(t, snaps, 5)
	for i, snap := range snaps {
		assert.Equal(t, uint32(i+1), snap.Seq)
	}
}

func TestBroadcaster_SilentWithoutReachablePeers(t *testing.T) {
	ft := newFakeTransport("me", "h", "me")
	ft.reachable = 0
	b := NewBroadcaster(ft, testLog)
	b.now = newTestClock().now

	assert.False(t, b.CaptureAndSend(testState(1)))
	assert.Empty(t, ft.sent)
}

func TestBroadcaster_SilentWhenSessionNotReady(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "a")
	ft.ready = false
	b := NewBroadcaster(ft, testLog)

	assert.False(t, b.CaptureAndSend(testState(1)))
	assert.Empty(t, ft.sent)
}

func TestBroadcaster_NilTransportDoesNothing(t *testing.T) {
	b := NewBroadcaster(nil, testLog)

	assert.False(t, b.CaptureAndSend(testState(1)))
	b.SendWeather(messages.WeatherEvent{TargetAmplitude: 1})
}

func TestBroadcaster_SendFailureDoesNotStopFutureSends(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "a")
	clock := newTestClock()
	b := NewBroadcaster(ft, testLog)
	b.now = clock.now

	ft.sendErr = errors.New("socket closed")
	assert.False(t, b.CaptureAndSend(testState(1)))

	ft.sendErr = nil
	clock.advance(netconfig.BroadcastInterval)
	assert.True(t, b.CaptureAndSend(testState(2)))
	require.Len(t, ft.sent, 1)
}

func TestBroadcaster_SnapshotCarriesCapturedState(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "a")
	b := NewBroadcaster(ft, testLog)
	b.now = newTestClock().now

	state := LocalState{
		Root:      components.Pose{Pos: gamemath.Vec3{X: 3, Y: 0.5, Z: -8}, Rot: gamemath.Euler{Yaw: 1.1}},
		HasDetail: true,
		Detail:    components.Pose{Pos: gamemath.Vec3{X: 3, Y: 2.7, Z: -8}},
		Surge:     true,
	}
	require.True(t, b.CaptureAndSend(state))

	snaps := ft.sentSnapshots()
	require.Len(t, snaps, 1)
	snap := snaps[0]
	assert.Equal(t, state.Root.Pos, snap.RootPos)
	assert.Equal(t, state.Root.Rot, snap.RootRot)
	assert.True(t, snap.HasDetail)
	assert.Equal(t, state.Detail.Pos, snap.DetailPos)
	assert.True(t, snap.Surge)
	assert.NotZero(t, snap.SentAt)
}

func TestBroadcaster_WeatherBypassesThrottle(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "a")
	b := NewBroadcaster(ft, testLog)
	b.now = newTestClock().now

	// Snapshot spends the interval; the weather event still goes out.
	require.True(t, b.CaptureAndSend(testState(1)))
	b.SendWeather(messages.WeatherEvent{TargetAmplitude: 2.2})

	assert.Len(t, ft.sent, 2)
}
