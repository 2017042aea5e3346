package network

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JayBlankenship/WorldofWater4/ocean"
	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
	"github.com/JayBlankenship/WorldofWater4/shared/messages"
)

func TestWireWeather_HostBroadcastsItsDecisions(t *testing.T) {
	ft := newFakeTransport("h", "h", "h", "a")
	reg := NewRegistry(ft, nil, testLog)
	b := NewBroadcaster(ft, testLog)
	w := ocean.NewWeather(rand.New(rand.NewSource(11)))

	WireWeather(w, reg, b, ft)

	// Step well past the maximum decision interval so at least one rolled
	// event passes through the hook and onto the wire.
	for i := 0; i < 60*30; i++ {
		w.Step(1.0 / 60.0)
	}

	var wires []messages.WeatherEvent
	for _, p := range ft.sent {
		kind, body, err := messages.DecodeKind(p)
		require.NoError(t, err)
		require.Equal(t, messages.KindWeather, kind)
		var ev messages.WeatherEvent
		require.NoError(t, messages.DecodeBody(body, &ev))
		wires = append(wires, ev)
	}
	require.NotEmpty(t, wires)
	assert.GreaterOrEqual(t, wires[0].TargetAmplitude, ocean.MinAmplitude)
	assert.LessOrEqual(t, wires[0].TargetAmplitude, ocean.MaxAmplitude)
}

func TestWireWeather_PeerAppliesHostEvents(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "h")
	reg := NewRegistry(ft, nil, testLog)
	b := NewBroadcaster(ft, testLog)
	w := ocean.NewDrivenWeather()

	WireWeather(w, reg, b, ft)

	payload, err := messages.Encode(messages.KindWeather, &messages.WeatherEvent{
		TargetAmplitude: 2.5,
		TargetSpeed:     2.0,
		Transition:      0.5,
		Zone:            &messages.ZoneSpawn{Center: gamemath.Vec3{X: 100}, Radius: 60, Intensity: 1, TTL: 40},
	})
	require.NoError(t, err)
	ft.deliver("h", payload)

	// The event landed: targets are easing and the zone exists.
	for i := 0; i < 120; i++ {
		w.Step(1.0 / 60.0)
	}
	assert.InDelta(t, 2.5, w.Amplitude, 1e-3)
	assert.Len(t, w.Zones(), 1)
}

func TestWireWeather_PeerIgnoresNonHostEvents(t *testing.T) {
	ft := newFakeTransport("me", "h", "me", "h", "a")
	reg := NewRegistry(ft, nil, testLog)
	b := NewBroadcaster(ft, testLog)
	w := ocean.NewDrivenWeather()

	WireWeather(w, reg, b, ft)

	payload, err := messages.Encode(messages.KindWeather, &messages.WeatherEvent{
		TargetAmplitude: 2.5, TargetSpeed: 2.0, Transition: 0.5,
	})
	require.NoError(t, err)
	ft.deliver("a", payload) // not the host

	for i := 0; i < 120; i++ {
		w.Step(1.0 / 60.0)
	}
	assert.Equal(t, 1.0, w.Amplitude, "weather from a non-host peer must be ignored")
}
