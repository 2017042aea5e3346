package main

import (
	"math"

	"github.com/JayBlankenship/WorldofWater4/components"
	"github.com/JayBlankenship/WorldofWater4/network"
	"github.com/JayBlankenship/WorldofWater4/ocean"
	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
)

// vehicle is the local boat. Without player input attached it sails a slow
// circuit so remote peers always have something moving to replicate. The
// hull rides the ocean surface; the cabin is the articulated detail part
// and exaggerates the swell.
type vehicle struct {
	name    string
	pos     gamemath.Vec3
	rot     gamemath.Euler
	detail  components.Pose
	heading float64
	speed   float64
	surge   bool
}

const (
	cruiseSpeed   = 6.0  // m/s
	turnRate      = 0.08 // rad/s, gives a wide lazy circle
	surgeBoost    = 1.6  // speed multiplier inside a disturbance zone
	cabinOffsetY  = 2.2  // cabin sits above the deck
	cabinSwayGain = 1.35 // cabin tilts harder than the hull
	poseEaseRate  = 8.0  // how fast the hull settles onto the surface
)

func newVehicle(name string) *vehicle {
	return &vehicle{
		name:    name,
		pos:     gamemath.Vec3{X: 40, Z: 0},
		heading: math.Pi / 2,
		speed:   cruiseSpeed,
	}
}

func (v *vehicle) update(dt, simTime float64, w *ocean.Weather) {
	zone := w.ZoneAt(v.pos.X, v.pos.Z)
	v.surge = zone != nil

	targetSpeed := cruiseSpeed
	if v.surge {
		targetSpeed = cruiseSpeed * surgeBoost
	}
	v.speed = gamemath.Lerp(v.speed, targetSpeed, gamemath.Clamp(dt*2.0, 0, 1))

	v.heading += turnRate * dt
	v.pos.X += math.Cos(v.heading) * v.speed * dt
	v.pos.Z += math.Sin(v.heading) * v.speed * dt

	// Ease onto the surface rather than snapping so chop reads as motion,
	// not teleporting.
	surfaceY := ocean.Height(v.pos.X, v.pos.Z, simTime, w)
	pitch, roll := ocean.Slope(v.pos.X, v.pos.Z, simTime, w)
	k := gamemath.Clamp(dt*poseEaseRate, 0, 1)
	v.pos.Y = gamemath.Lerp(v.pos.Y, surfaceY, k)
	v.rot.Pitch = gamemath.Lerp(v.rot.Pitch, pitch, k)
	v.rot.Roll = gamemath.Lerp(v.rot.Roll, roll, k)
	v.rot.Yaw = gamemath.WrapAngle(v.heading)

	v.detail = components.Pose{
		Pos: gamemath.Vec3{
			X: v.pos.X,
			Y: v.pos.Y + cabinOffsetY,
			Z: v.pos.Z,
		},
		Rot: gamemath.Euler{
			Pitch: v.rot.Pitch * cabinSwayGain,
			Yaw:   v.rot.Yaw,
			Roll:  v.rot.Roll * cabinSwayGain,
		},
	}
}

// state captures the broadcastable view of the vehicle for this tick.
func (v *vehicle) state() network.LocalState {
	return network.LocalState{
		Root:      components.Pose{Pos: v.pos, Rot: v.rot},
		HasDetail: true,
		Detail:    v.detail,
		Surge:     v.surge,
	}
}
