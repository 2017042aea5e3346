package messages

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
)

func TestEncode_KindPrefixAndRoundTrip(t *testing.T) {
	snap := StateSnapshot{
		Seq:       17,
		RootPos:   gamemath.Vec3{X: 12.5, Y: -0.75, Z: 300},
		RootRot:   gamemath.Euler{Pitch: 0.1, Yaw: 2.9, Roll: -0.05},
		HasDetail: true,
		DetailPos: gamemath.Vec3{X: 12.5, Y: 1.45, Z: 300},
		DetailRot: gamemath.Euler{Yaw: 2.9},
		Surge:     true,
		SentAt:    1700000000123,
	}

	payload, err := Encode(KindSnapshot, &snap)
	require.NoError(t, err)
	assert.Equal(t, byte(KindSnapshot), payload[0])

	kind, body, err := DecodeKind(payload)
	require.NoError(t, err)
	assert.Equal(t, KindSnapshot, kind)

	var got StateSnapshot
	require.NoError(t, DecodeBody(body, &got))
	assert.Equal(t, snap, got)
	assert.True(t, got.HasRoot())
}

func TestDecodeKind_RejectsShortPayloads(t *testing.T) {
	_, _, err := DecodeKind(nil)
	assert.Error(t, err)

	_, _, err = DecodeKind([]byte{byte(KindSnapshot)})
	assert.Error(t, err)
}

func TestWeatherEvent_RoundTripWithAndWithoutZone(t *testing.T) {
	withZone := WeatherEvent{
		TargetAmplitude: 2.1,
		TargetSpeed:     1.4,
		Transition:      6,
		Zone: &ZoneSpawn{
			Center:    gamemath.Vec3{X: -500, Z: 250},
			Radius:    90,
			Intensity: 1.3,
			Phase:     2.2,
			TTL:       45,
		},
	}

	payload, err := Encode(KindWeather, &withZone)
	require.NoError(t, err)
	_, body, err := DecodeKind(payload)
	require.NoError(t, err)

	var got WeatherEvent
	require.NoError(t, DecodeBody(body, &got))
	assert.Equal(t, withZone, got)

	calm := WeatherEvent{TargetAmplitude: 0.6, TargetSpeed: 0.8, Transition: 10}
	payload, err = Encode(KindWeather, &calm)
	require.NoError(t, err)
	_, body, err = DecodeKind(payload)
	require.NoError(t, err)

	got = WeatherEvent{}
	require.NoError(t, DecodeBody(body, &got))
	assert.Nil(t, got.Zone)
	assert.Equal(t, calm, got)
}

func TestEnvelope_PayloadStaysOpaque(t *testing.T) {
	inner, err := Encode(KindSnapshot, &StateSnapshot{Seq: 1, RootPos: gamemath.Vec3{X: 1}})
	require.NoError(t, err)

	env := Envelope{FromID: "peer-a", Payload: inner}
	payload, err := Encode(KindEnvelope, &env)
	require.NoError(t, err)

	kind, body, err := DecodeKind(payload)
	require.NoError(t, err)
	require.Equal(t, KindEnvelope, kind)

	var got Envelope
	require.NoError(t, DecodeBody(body, &got))
	assert.Equal(t, "peer-a", got.FromID)
	assert.Equal(t, inner, got.Payload, "relay must not alter the inner payload")
}

func TestStateSnapshot_HasRoot(t *testing.T) {
	good := StateSnapshot{RootPos: gamemath.Vec3{X: 1, Y: 2, Z: 3}}
	assert.True(t, good.HasRoot())

	bad := StateSnapshot{RootPos: gamemath.Vec3{X: math.NaN()}}
	assert.False(t, bad.HasRoot())

	alsoBad := StateSnapshot{RootRot: gamemath.Euler{Yaw: math.Inf(1)}}
	assert.False(t, alsoBad.HasRoot())
}

func TestRoster_RoundTrip(t *testing.T) {
	r := Roster{HostID: "h", PeerIDs: []string{"h", "a", "b"}}

	payload, err := Encode(KindRoster, &r)
	require.NoError(t, err)
	_, body, err := DecodeKind(payload)
	require.NoError(t, err)

	var got Roster
	require.NoError(t, DecodeBody(body, &got))
	assert.Equal(t, r, got)
}
