package gamemath

import "math"

// Euler holds an orientation as pitch/yaw/roll in radians (XYZ order).
type Euler struct {
	Pitch, Yaw, Roll float64
}

// IsFinite reports whether every angle is a finite number.
func (e Euler) IsFinite() bool {
	return !math.IsNaN(e.Pitch) && !math.IsInf(e.Pitch, 0) &&
		!math.IsNaN(e.Yaw) && !math.IsInf(e.Yaw, 0) &&
		!math.IsNaN(e.Roll) && !math.IsInf(e.Roll, 0)
}

// Quat is a unit quaternion. Orientation interpolation always goes through
// Quat so that angles crossing the ±π seam never produce a long-way spin.
type Quat struct {
	W, X, Y, Z float64
}

// QuatFromEuler converts pitch/yaw/roll to a quaternion using YXZ order
// (heading first, then pitch, then roll). Yaw and roll cover the full
// circle; pitch is the gimbal axis and is meaningful within ±π/2, which a
// surface vehicle never exceeds.
func QuatFromEuler(e Euler) Quat {
	cp := math.Cos(e.Pitch / 2)
	sp := math.Sin(e.Pitch / 2)
	cy := math.Cos(e.Yaw / 2)
	sy := math.Sin(e.Yaw / 2)
	cr := math.Cos(e.Roll / 2)
	sr := math.Sin(e.Roll / 2)

	return Quat{
		W: cp*cy*cr + sp*sy*sr,
		X: sp*cy*cr + cp*sy*sr,
		Y: cp*sy*cr - sp*cy*sr,
		Z: cp*cy*sr - sp*sy*cr,
	}
}

// ToEuler converts q back to pitch/yaw/roll (YXZ order), clamping the
// pitch axis at the poles.
func (q Quat) ToEuler() Euler {
	sinp := 2 * (q.W*q.X - q.Y*q.Z)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	yaw := math.Atan2(2*(q.X*q.Z+q.W*q.Y), 1-2*(q.X*q.X+q.Y*q.Y))
	roll := math.Atan2(2*(q.X*q.Y+q.W*q.Z), 1-2*(q.X*q.X+q.Z*q.Z))

	return Euler{Pitch: pitch, Yaw: yaw, Roll: roll}
}

// Normalize returns q scaled to unit length. The identity rotation is
// returned for a degenerate zero quaternion.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return Quat{W: 1}
	}
	return Quat{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

// Slerp spherically interpolates from a to b at t in [0,1], always taking
// the shortest arc.
func Slerp(a, b Quat, t float64) Quat {
	dot := a.W*b.W + a.X*b.X + a.Y*b.Y + a.Z*b.Z

	// Negate one side so interpolation takes the short way around.
	if dot < 0 {
		b = Quat{-b.W, -b.X, -b.Y, -b.Z}
		dot = -dot
	}

	// Nearly parallel: fall back to normalized lerp to avoid division by
	// a vanishing sine.
	if dot > 0.9995 {
		return Quat{
			W: Lerp(a.W, b.W, t),
			X: Lerp(a.X, b.X, t),
			Y: Lerp(a.Y, b.Y, t),
			Z: Lerp(a.Z, b.Z, t),
		}.Normalize()
	}

	theta := math.Acos(Clamp(dot, -1, 1))
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta

	return Quat{
		W: wa*a.W + wb*b.W,
		X: wa*a.X + wb*b.X,
		Y: wa*a.Y + wb*b.Y,
		Z: wa*a.Z + wb*b.Z,
	}.Normalize()
}

// SlerpEuler interpolates between two Euler orientations through quaternion
// space and returns the result as Euler angles.
func SlerpEuler(from, to Euler, t float64) Euler {
	return Slerp(QuatFromEuler(from), QuatFromEuler(to), t).ToEuler()
}

// AngularDist returns the absolute angle in radians between two orientations.
func AngularDist(a, b Euler) float64 {
	qa := QuatFromEuler(a)
	qb := QuatFromEuler(b)
	dot := qa.W*qb.W + qa.X*qb.X + qa.Y*qb.Y + qa.Z*qb.Z
	return 2 * math.Acos(Clamp(math.Abs(dot), 0, 1))
}

// WrapAngle normalizes an angle to (-π, π].
func WrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
