// Package ocean models the shared water surface: a mutable weather state
// evolved by the local simulation loop and a pure, deterministic height
// field every peer evaluates identically. No per-vertex data ever crosses
// the network; peers agree on the surface because they agree on the inputs.
package ocean

import (
	"math"
	"math/rand"

	"github.com/solarlune/resolv"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/JayBlankenship/WorldofWater4/shared/gamemath"
)

// Weather tuning. The world is calm near the origin and rougher toward the
// edge, with transient disturbance zones layered on top.
const (
	MinAmplitude = 0.4
	MaxAmplitude = 2.6
	MinSpeed     = 0.6
	MaxSpeed     = 2.2

	// Seconds between host weather decisions.
	minEventInterval = 8.0
	maxEventInterval = 22.0

	// Seconds a target transition takes by default.
	defaultTransition = 6.0

	MaxZones      = 4
	minZoneRadius = 40.0
	maxZoneRadius = 140.0
	minZoneTTL    = 20.0
	maxZoneTTL    = 60.0

	zoneRampIn  = 4.0
	zoneRampOut = 6.0

	// WorldExtent is the half-width of the playable ocean in world units.
	WorldExtent = 2048.0

	zoneTag       = "disturbance"
	spaceCellSize = 64
)

// ZoneSpec is the serializable description of a disturbance zone spawn.
type ZoneSpec struct {
	Center    gamemath.Vec3
	Radius    float64
	Intensity float64
	Phase     float64
	TTL       float64
}

// Event is one weather decision: new amplitude/speed targets and optionally
// a zone spawn. The host rolls these and broadcasts them; other peers apply
// them verbatim so their oceans stay in step.
type Event struct {
	TargetAmplitude float64
	TargetSpeed     float64
	Transition      float64
	Zone            *ZoneSpec
}

// Disturbance is a live zone: a spatially bounded perturbation (storm cell)
// that boosts local wave amplitude and adds a decaying swirl.
type Disturbance struct {
	Center    gamemath.Vec3
	Radius    float64
	Intensity float64
	Phase     float64
	Age       float64
	TTL       float64

	obj *resolv.Object
}

// envelope ramps a zone's influence in at spawn and out before expiry, so
// zones never pop visually.
func (d *Disturbance) envelope() float64 {
	in := gamemath.Smoothstep(0, zoneRampIn, d.Age)
	out := 1 - gamemath.Smoothstep(d.TTL-zoneRampOut, d.TTL, d.Age)
	return in * out
}

// Weather is the mutable wave parameter set owned by the simulation loop.
// It must only ever be stepped and read from that loop.
type Weather struct {
	Amplitude float64
	Speed     float64

	ampTween *gween.Tween
	spdTween *gween.Tween

	zones []*Disturbance
	space *resolv.Space
	probe *resolv.Object

	// rng is nil for a driven (non-host) weather; a driven weather never
	// makes its own decisions and waits for ApplyEvent.
	rng       *rand.Rand
	countdown float64

	// onEvent fires for every locally rolled decision, before it is
	// applied. The host's network glue hangs its broadcast here.
	onEvent func(Event)
}

// NewWeather returns a weather that rolls its own decisions from rng.
// This is the host (or single-simulation) configuration.
func NewWeather(rng *rand.Rand) *Weather {
	w := newWeather()
	w.rng = rng
	w.countdown = w.rollInterval()
	return w
}

// NewDrivenWeather returns a weather that never rolls decisions and only
// changes through ApplyEvent. This is the non-host configuration.
func NewDrivenWeather() *Weather {
	return newWeather()
}

func newWeather() *Weather {
	side := int(WorldExtent * 2)
	space := resolv.NewSpace(side, side, spaceCellSize, spaceCellSize)
	probe := resolv.NewObject(WorldExtent, WorldExtent, 1, 1, "probe")
	space.Add(probe)

	return &Weather{
		Amplitude: 1.0,
		Speed:     1.0,
		space:     space,
		probe:     probe,
	}
}

// OnEvent registers the callback fired for locally rolled weather decisions.
func (w *Weather) OnEvent(fn func(Event)) {
	w.onEvent = fn
}

// Zones returns the live disturbance zones. The slice is owned by Weather
// and only valid until the next Step.
func (w *Weather) Zones() []*Disturbance {
	return w.zones
}

// Step advances transitions, ages zones, and (when self-driven) rolls new
// weather decisions.
func (w *Weather) Step(dt float64) {
	if w.ampTween != nil {
		v, done := w.ampTween.Update(float32(dt))
		w.Amplitude = float64(v)
		if done {
			w.ampTween = nil
		}
	}
	if w.spdTween != nil {
		v, done := w.spdTween.Update(float32(dt))
		w.Speed = float64(v)
		if done {
			w.spdTween = nil
		}
	}

	// Age and expire zones in place.
	kept := w.zones[:0]
	for _, z := range w.zones {
		z.Age += dt
		if z.Age >= z.TTL {
			w.space.Remove(z.obj)
			continue
		}
		kept = append(kept, z)
	}
	w.zones = kept

	if w.rng == nil {
		return
	}
	w.countdown -= dt
	if w.countdown > 0 {
		return
	}
	w.countdown = w.rollInterval()

	ev := w.rollEvent()
	if w.onEvent != nil {
		w.onEvent(ev)
	}
	w.ApplyEvent(ev)
}

// ApplyEvent eases amplitude/speed toward the event's targets and spawns
// its zone, if any. Both the host (its own decisions) and non-hosts
// (received decisions) go through here, so the code path is identical.
func (w *Weather) ApplyEvent(ev Event) {
	tr := ev.Transition
	if tr <= 0 {
		tr = defaultTransition
	}
	amp := gamemath.Clamp(ev.TargetAmplitude, MinAmplitude, MaxAmplitude)
	spd := gamemath.Clamp(ev.TargetSpeed, MinSpeed, MaxSpeed)
	w.ampTween = gween.New(float32(w.Amplitude), float32(amp), float32(tr), ease.InOutQuad)
	w.spdTween = gween.New(float32(w.Speed), float32(spd), float32(tr), ease.InOutQuad)

	if ev.Zone != nil && len(w.zones) < MaxZones {
		w.spawnZone(*ev.Zone)
	}
}

func (w *Weather) spawnZone(spec ZoneSpec) {
	d := &Disturbance{
		Center:    gamemath.Vec3{X: spec.Center.X, Z: spec.Center.Z},
		Radius:    spec.Radius,
		Intensity: spec.Intensity,
		Phase:     spec.Phase,
		TTL:       spec.TTL,
	}

	// Index the zone in the x,z collision space so ZoneAt stays cheap.
	size := d.Radius * 2
	obj := resolv.NewObject(
		d.Center.X-d.Radius+WorldExtent,
		d.Center.Z-d.Radius+WorldExtent,
		size, size, zoneTag,
	)
	obj.SetShape(resolv.NewRectangle(0, 0, size, size))
	obj.Data = d
	w.space.Add(obj)
	d.obj = obj

	w.zones = append(w.zones, d)
}

// ZoneAt returns a disturbance zone whose radius covers the world-space
// point (x, z), or nil. Used for surge detection, not by the height field.
func (w *Weather) ZoneAt(x, z float64) *Disturbance {
	w.probe.X = x + WorldExtent
	w.probe.Y = z + WorldExtent
	w.probe.Update()

	check := w.probe.Check(0, 0, zoneTag)
	if check == nil {
		return nil
	}
	p := gamemath.Vec3{X: x, Z: z}
	for _, obj := range check.Objects {
		d, ok := obj.Data.(*Disturbance)
		if !ok {
			continue
		}
		if p.DistXZ(d.Center) <= d.Radius {
			return d
		}
	}
	return nil
}

func (w *Weather) rollInterval() float64 {
	return minEventInterval + w.rng.Float64()*(maxEventInterval-minEventInterval)
}

// rollEvent draws the next weather decision. Zone spawns are skipped while
// the zone list is full.
func (w *Weather) rollEvent() Event {
	ev := Event{
		TargetAmplitude: MinAmplitude + w.rng.Float64()*(MaxAmplitude-MinAmplitude),
		TargetSpeed:     MinSpeed + w.rng.Float64()*(MaxSpeed-MinSpeed),
		Transition:      defaultTransition,
	}

	if len(w.zones) < MaxZones && w.rng.Float64() < 0.6 {
		ev.Zone = &ZoneSpec{
			Center: gamemath.Vec3{
				X: (w.rng.Float64()*2 - 1) * WorldExtent * 0.8,
				Z: (w.rng.Float64()*2 - 1) * WorldExtent * 0.8,
			},
			Radius:    minZoneRadius + w.rng.Float64()*(maxZoneRadius-minZoneRadius),
			Intensity: 0.5 + w.rng.Float64()*1.5,
			Phase:     w.rng.Float64() * 2 * math.Pi,
			TTL:       minZoneTTL + w.rng.Float64()*(maxZoneTTL-minZoneTTL),
		}
	}
	return ev
}
