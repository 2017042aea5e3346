package network

import (
	"github.com/rs/zerolog"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"

	"github.com/JayBlankenship/WorldofWater4/components"
	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
	"github.com/JayBlankenship/WorldofWater4/shared/messages"
	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

// seqNewer reports whether a is a later sequence number than b, tolerating
// uint32 wraparound.
func seqNewer(a, b uint32) bool {
	return int32(a-b) > 0
}

// lerpPose eases position linearly and orientation spherically, so angles
// crossing the ±π seam never swing the long way around.
func lerpPose(from, to components.Pose, t float64) components.Pose {
	return components.Pose{
		Pos: gamemath.LerpVec3(from.Pos, to.Pos, t),
		Rot: gamemath.SlerpEuler(from.Rot, to.Rot, t),
	}
}

// applyReplicaSnapshot feeds one received snapshot into a replica entry.
// Returns false when the snapshot was discarded (malformed or stale seq).
//
// The first valid snapshot snaps current and target poses together so the
// replica never glides in from its spawn pose. Later snapshots only move
// the targets and restart the interpolation clocks from the current pose.
func applyReplicaSnapshot(entry *donburi.Entry, snap *messages.StateSnapshot, now float64, log zerolog.Logger) bool {
	peer := components.ReplicaPeer.Get(entry)
	status := components.ReplicaStatus.Get(entry)

	if !snap.HasRoot() {
		log.Debug().Str("peer", peer.ID).Msg("discarding snapshot without root transform")
		return false
	}
	if status.SeenFirst && !seqNewer(snap.Seq, status.LastSeq) {
		log.Debug().
			Str("peer", peer.ID).
			Uint32("seq", snap.Seq).
			Uint32("lastSeq", status.LastSeq).
			Msg("discarding out-of-order snapshot")
		return false
	}

	tr := components.ReplicaTransform.Get(entry)
	interp := components.ReplicaInterp.Get(entry)

	root := components.Pose{Pos: snap.RootPos, Rot: snap.RootRot}
	detail := components.Pose{Pos: snap.DetailPos, Rot: snap.DetailRot}

	if !status.SeenFirst {
		tr.CurRoot = root
		tr.TargetRoot = root
		tr.HasDetail = snap.HasDetail
		if snap.HasDetail {
			tr.CurDetail = detail
			tr.TargetDetail = detail
		}
		interp.RootClock = nil
		interp.DetailClock = nil
		status.SeenFirst = true
	} else {
		interp.FromRoot = tr.CurRoot
		tr.TargetRoot = root
		interp.RootClock = gween.New(0, 1, float32(1.0/netconfig.RootLerpRate), ease.Linear)

		if snap.HasDetail {
			if tr.HasDetail {
				interp.FromDetail = tr.CurDetail
			} else {
				// Detail transform appeared mid-session: snap it.
				interp.FromDetail = detail
				tr.CurDetail = detail
			}
			tr.TargetDetail = detail
			interp.DetailClock = gween.New(0, 1, float32(1.0/netconfig.DetailLerpRate), ease.Linear)
		}
		tr.HasDetail = snap.HasDetail
	}

	// Flags bypass interpolation entirely.
	status.Surge = snap.Surge

	status.LastSeq = snap.Seq
	status.LastSeenAt = now
	status.Active = true
	return true
}

// tickReplica advances one replica by dt simulated seconds: staleness
// first, then interpolation toward the targets. Inactive replicas hold
// still until a fresh snapshot reactivates them.
func tickReplica(entry *donburi.Entry, dt, now float64, log zerolog.Logger) {
	status := components.ReplicaStatus.Get(entry)

	if status.Active && now-status.LastSeenAt > netconfig.StaleTimeout {
		status.Active = false
		status.InactiveAt = now
		peer := components.ReplicaPeer.Get(entry)
		log.Info().Str("peer", peer.ID).Msg("replica went stale")
	}
	if !status.Active {
		return
	}

	tr := components.ReplicaTransform.Get(entry)
	interp := components.ReplicaInterp.Get(entry)

	if interp.RootClock != nil {
		t, done := interp.RootClock.Update(float32(dt))
		tr.CurRoot = lerpPose(interp.FromRoot, tr.TargetRoot, float64(t))
		if done {
			tr.CurRoot = tr.TargetRoot
			interp.RootClock = nil
		}
	}
	if tr.HasDetail && interp.DetailClock != nil {
		t, done := interp.DetailClock.Update(float32(dt))
		tr.CurDetail = lerpPose(interp.FromDetail, tr.TargetDetail, float64(t))
		if done {
			tr.CurDetail = tr.TargetDetail
			interp.DetailClock = nil
		}
	}
}
