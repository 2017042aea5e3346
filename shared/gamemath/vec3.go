// Package gamemath defines lightweight math types shared between the
// simulation, the ocean surface, and network serialization. It must have
// zero dependencies on any graphics library so headless peers stay headless.
package gamemath

import "math"

// Vec3 is a position or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the Euclidean length of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Length()
}

// DistXZ returns the distance between v and o projected onto the x,z plane.
func (v Vec3) DistXZ(o Vec3) float64 {
	dx := v.X - o.X
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Lerp returns the linear interpolation between from and to at t in [0,1].
func Lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}

// LerpVec3 interpolates each component of from toward to at t.
func LerpVec3(from, to Vec3, t float64) Vec3 {
	return Vec3{
		X: Lerp(from.X, to.X, t),
		Y: Lerp(from.Y, to.Y, t),
		Z: Lerp(from.Z, to.Z, t),
	}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Smoothstep maps v from [edge0, edge1] to [0,1] with zero slope at both ends.
func Smoothstep(edge0, edge1, v float64) float64 {
	t := Clamp((v-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// IsFinite reports whether every component of v is a finite number.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
