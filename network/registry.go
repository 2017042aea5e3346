package network

import (
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"

	"github.com/JayBlankenship/WorldofWater4/components"
	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
	"github.com/JayBlankenship/WorldofWater4/shared/messages"
	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

// View is a replica's visual representation, owned by the rendering
// collaborator. Detach must be idempotent.
type View interface {
	Detach()
}

// ViewBinder is the optional capability a rendering collaborator provides
// to give replicas a visual body. It is checked once at registry
// construction; a nil binder simply means headless replicas.
type ViewBinder interface {
	Attach(peerID string, role components.Role) View
}

// ReplicaState is a read-only projection of one replica for display, AI,
// and terrain consumers.
type ReplicaState struct {
	ID     string
	Role   components.Role
	Active bool
	Root   components.Pose
	Detail components.Pose
	Surge  bool
}

// Registry owns every remote replica and keeps the set consistent with
// session membership. It operates in networked mode when a live session is
// available at construction, and otherwise in single-simulation mode where
// every operation is a no-op — the same loop code runs either way.
//
// All methods must be called from the simulation loop; inbound payloads
// reach the registry through Transport.Pump on that same loop.
type Registry struct {
	world     donburi.World
	transport Transport
	views     ViewBinder
	log       zerolog.Logger

	networked bool
	localID   string
	hostID    string

	simTime     float64
	lastCleanup float64

	entities    map[string]donburi.Entity
	peerViews   map[string]View
	weatherSink func(fromID string, ev messages.WeatherEvent)
}

// NewRegistry builds a registry over the given transport. A nil transport,
// or one whose session is not ready, yields a single-simulation registry
// that tracks nothing.
func NewRegistry(transport Transport, views ViewBinder, log zerolog.Logger) *Registry {
	r := &Registry{
		world:     donburi.NewWorld(),
		transport: transport,
		views:     views,
		log:       log.With().Str("sys", "registry").Logger(),
		entities:  make(map[string]donburi.Entity),
		peerViews: make(map[string]View),
	}

	// Mode gate, decided exactly once. Single-simulation registries never
	// register callbacks and hold zero entities for their whole life.
	if transport == nil || !transport.Session().Ready() {
		r.log.Info().Msg("no live session, running single-simulation")
		return r
	}

	sess := transport.Session()
	r.networked = true
	r.localID = sess.LocalPeerID()
	r.hostID = sess.HostID()

	transport.OnMessage(r.handlePayload)
	sess.OnPeersChanged(func(ids []string) { r.Reconcile(ids) })
	r.Reconcile(sess.PeerIDs())

	r.log.Info().Str("localPeer", r.localID).Bool("host", sess.IsHost()).Msg("networked replication up")
	return r
}

// Networked reports the mode picked at construction.
func (r *Registry) Networked() bool {
	return r.networked
}

// OnWeather registers the sink for host weather events arriving over the
// wire. Wired once during composition, before the loop starts.
func (r *Registry) OnWeather(fn func(fromID string, ev messages.WeatherEvent)) {
	r.weatherSink = fn
}

// handlePayload demultiplexes one inbound payload.
func (r *Registry) handlePayload(fromID string, payload []byte) {
	kind, body, err := messages.DecodeKind(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("peer", fromID).Msg("dropping undecodable payload")
		return
	}

	switch kind {
	case messages.KindSnapshot:
		var snap messages.StateSnapshot
		if err := messages.DecodeBody(body, &snap); err != nil {
			r.log.Warn().Err(err).Str("peer", fromID).Msg("dropping bad snapshot")
			return
		}
		r.RouteSnapshot(fromID, &snap)
	case messages.KindWeather:
		if r.weatherSink == nil {
			return
		}
		var ev messages.WeatherEvent
		if err := messages.DecodeBody(body, &ev); err != nil {
			r.log.Warn().Err(err).Str("peer", fromID).Msg("dropping bad weather event")
			return
		}
		r.weatherSink(fromID, ev)
	default:
		r.log.Debug().Uint8("kind", uint8(kind)).Str("peer", fromID).Msg("ignoring unknown payload kind")
	}
}

// Reconcile makes the tracked set equal to currentPeerIDs minus the local
// peer: missing replicas are created, departed ones destroyed. Idempotent
// and convergent, so it doubles as a periodic safety net.
func (r *Registry) Reconcile(currentPeerIDs []string) {
	if !r.networked {
		return
	}

	want := make(map[string]bool, len(currentPeerIDs))
	for _, id := range currentPeerIDs {
		if id == "" || id == r.localID {
			continue
		}
		want[id] = true
		if _, ok := r.entities[id]; !ok {
			r.createReplica(id)
		}
	}

	for id := range r.entities {
		if !want[id] {
			r.log.Info().Str("peer", id).Msg("peer left session, removing replica")
			r.removeReplica(id)
		}
	}
}

// RouteSnapshot delivers a snapshot to its peer's replica, lazily creating
// one when the snapshot outruns membership bookkeeping.
func (r *Registry) RouteSnapshot(peerID string, snap *messages.StateSnapshot) {
	if !r.networked || peerID == r.localID {
		return
	}

	entity, ok := r.entities[peerID]
	if !ok {
		r.log.Debug().Str("peer", peerID).Msg("snapshot for untracked peer, creating replica")
		entity = r.createReplica(peerID)
	}

	applyReplicaSnapshot(r.world.Entry(entity), snap, r.simTime, r.log)
}

// TickAll advances every replica by dt simulated seconds, then runs the
// staleness cleanup sweep at most once per cleanup interval.
func (r *Registry) TickAll(dt float64) {
	if !r.networked {
		return
	}
	r.simTime += dt

	for _, entity := range r.entities {
		tickReplica(r.world.Entry(entity), dt, r.simTime, r.log)
	}

	if r.simTime-r.lastCleanup < netconfig.CleanupInterval {
		return
	}
	r.lastCleanup = r.simTime
	for id, entity := range r.entities {
		status := components.ReplicaStatus.Get(r.world.Entry(entity))
		if !status.Active && status.SeenFirst && r.simTime-status.InactiveAt > netconfig.CleanupInterval {
			r.log.Info().Str("peer", id).Msg("removing long-stale replica")
			r.removeReplica(id)
		}
	}
}

// Positions returns the root positions of currently active replicas, for
// terrain and AI consumers that need to know where other hulls are.
func (r *Registry) Positions() []gamemath.Vec3 {
	if !r.networked {
		return nil
	}
	out := make([]gamemath.Vec3, 0, len(r.entities))
	for _, entity := range r.entities {
		entry := r.world.Entry(entity)
		if !components.ReplicaStatus.Get(entry).Active {
			continue
		}
		out = append(out, components.ReplicaTransform.Get(entry).CurRoot.Pos)
	}
	return out
}

// States returns a display projection of every tracked replica.
func (r *Registry) States() []ReplicaState {
	out := make([]ReplicaState, 0, len(r.entities))
	for _, entity := range r.entities {
		entry := r.world.Entry(entity)
		peer := components.ReplicaPeer.Get(entry)
		tr := components.ReplicaTransform.Get(entry)
		status := components.ReplicaStatus.Get(entry)
		out = append(out, ReplicaState{
			ID:     peer.ID,
			Role:   peer.Role,
			Active: status.Active,
			Root:   tr.CurRoot,
			Detail: tr.CurDetail,
			Surge:  status.Surge,
		})
	}
	return out
}

// Count returns the number of tracked replicas, active or not.
func (r *Registry) Count() int {
	return len(r.entities)
}

func (r *Registry) createReplica(peerID string) donburi.Entity {
	role := components.RolePeer
	if peerID == r.hostID {
		role = components.RoleHost
	}

	entity := r.world.Create(
		components.ReplicaPeer,
		components.ReplicaTransform,
		components.ReplicaInterp,
		components.ReplicaStatus,
	)
	entry := r.world.Entry(entity)
	components.ReplicaPeer.Set(entry, &components.ReplicaPeerData{ID: peerID, Role: role})

	if r.views != nil {
		r.peerViews[peerID] = r.views.Attach(peerID, role)
	}

	r.entities[peerID] = entity
	r.log.Info().Str("peer", peerID).Str("role", role.String()).Msg("replica created")
	return entity
}

// removeReplica destroys a replica and detaches its view. Safe to call for
// ids that are not tracked.
func (r *Registry) removeReplica(peerID string) {
	entity, ok := r.entities[peerID]
	if !ok {
		return
	}
	if v, ok := r.peerViews[peerID]; ok && v != nil {
		v.Detach()
		delete(r.peerViews, peerID)
	}
	r.world.Remove(entity)
	delete(r.entities, peerID)
}
