package ocean

import (
	"math"

	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
)

// Height field tuning. Frequencies are deliberately non-commensurate so the
// octave sum never visibly tiles.
const (
	baseLevel = 0.0

	freq1  = 0.045
	freq1b = 0.038
	freq2  = 0.021
	freq3  = 0.013

	speed1 = 1.1
	speed2 = 0.7
	speed3 = 0.43

	// Radial calm-to-rough falloff: flat water near the origin, full
	// amplitude past roughRadius.
	calmRadius  = 120.0
	roughRadius = 900.0
	calmFloor   = 0.35

	zoneBoost = 1.4
	swirlFreq = 0.35

	// Finite-difference step and tilt damping for Slope.
	slopeDelta = 2.0
	tiltScale  = 0.45
)

// Height returns the surface height at world (x, z) for simulation time t
// and weather w. It is a pure function of its inputs: any two peers that
// agree on t and w compute the same surface, which is what keeps a local
// vehicle and the remote replicas resting on the same water.
func Height(x, z, t float64, w *Weather) float64 {
	speed := w.Speed

	// Local multiplier: calm near the world origin, rougher at the edges,
	// boosted inside disturbance zones.
	r := math.Sqrt(x*x + z*z)
	mult := calmFloor + (1-calmFloor)*gamemath.Smoothstep(calmRadius, roughRadius, r)

	h := baseLevel
	p := gamemath.Vec3{X: x, Z: z}
	for _, zone := range w.zones {
		d := p.DistXZ(zone.Center)
		if d >= zone.Radius {
			continue
		}
		infl := zone.Intensity * zone.envelope() * (1 - gamemath.Smoothstep(0, zone.Radius, d))
		mult += zoneBoost * infl

		// Swirl: a radial ripple emanating from the zone center, decaying
		// with distance and carried by the zone's own phase.
		swirl := math.Sin(d*swirlFreq - t*speed*2.0 + zone.Phase)
		h += swirl * infl
	}

	a := w.Amplitude * mult
	h += a * math.Sin(x*freq1+t*speed*speed1) * math.Cos(z*freq1b+t*speed*speed1*0.9)
	h += a * 0.5 * math.Sin((x+z)*freq2-t*speed*speed2)
	h += a * 0.25 * math.Sin(x*freq3*1.7+z*freq3*1.3+t*speed*speed3)

	return h
}

// Slope samples Height at four offset points around (x, z) and returns the
// surface pitch and roll in radians, damped so vehicles do not tilt
// theatrically on steep wave faces. Pitch tips the bow along +z, roll tips
// the hull along +x.
func Slope(x, z, t float64, w *Weather) (pitch, roll float64) {
	hxp := Height(x+slopeDelta, z, t, w)
	hxm := Height(x-slopeDelta, z, t, w)
	hzp := Height(x, z+slopeDelta, t, w)
	hzm := Height(x, z-slopeDelta, t, w)

	pitch = math.Atan2(hzp-hzm, 2*slopeDelta) * tiltScale
	roll = math.Atan2(hxp-hxm, 2*slopeDelta) * tiltScale
	return pitch, roll
}
