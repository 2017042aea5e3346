package components

import (
	"github.com/tanema/gween"
	"github.com/yohamta/donburi"

	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
)

// Role tags a replica as the session host or an ordinary peer. It informs
// display and trust decisions only; interpolation is role-agnostic.
type Role int

const (
	RolePeer Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "peer"
}

// Pose pairs a position with an orientation. Each replica carries two: the
// root pose (hull) and a detail pose (superstructure bob/tilt) replicated
// independently.
type Pose struct {
	Pos gamemath.Vec3
	Rot gamemath.Euler
}

// ReplicaPeerData identifies which peer a replica stands in for.
type ReplicaPeerData struct {
	ID   string
	Role Role
}

// ReplicaTransformData holds the smoothed current poses and the raw target
// poses from the most recent snapshot.
type ReplicaTransformData struct {
	CurRoot    Pose
	TargetRoot Pose

	HasDetail    bool
	CurDetail    Pose
	TargetDetail Pose
}

// ReplicaInterpData drives smoothing between snapshots: each transform has
// a 0→1 tween clock restarted on every retarget, plus the pose it started
// from. The detail clock runs faster than the root clock.
type ReplicaInterpData struct {
	RootClock   *gween.Tween
	DetailClock *gween.Tween
	FromRoot    Pose
	FromDetail  Pose
}

// ReplicaStatusData tracks snapshot bookkeeping and the activity state
// machine (synced-active or inactive after StaleTimeout).
type ReplicaStatusData struct {
	Active     bool
	SeenFirst  bool
	LastSeenAt float64 // sim seconds
	InactiveAt float64 // sim seconds of the active→inactive transition
	LastSeq    uint32
	Surge      bool
}

var (
	ReplicaPeer      = donburi.NewComponentType[ReplicaPeerData]()
	ReplicaTransform = donburi.NewComponentType[ReplicaTransformData]()
	ReplicaInterp    = donburi.NewComponentType[ReplicaInterpData]()
	ReplicaStatus    = donburi.NewComponentType[ReplicaStatusData]()
)
