package network

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/JayBlankenship/WorldofWater4/components"
	"github.com/JayBlankenship/WorldofWater4/shared/messages"
	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

// LocalState is the local vehicle's authoritative state captured once per
// simulation tick.
type LocalState struct {
	Root      components.Pose
	HasDetail bool
	Detail    components.Pose
	Surge     bool
}

// Broadcaster decides when and what the local peer transmits. Capture is
// attempted every tick; actual sends are throttled to one per broadcast
// interval so outbound bandwidth is bounded no matter the frame rate.
type Broadcaster struct {
	transport Transport
	limiter   *rate.Limiter
	log       zerolog.Logger
	seq       uint32
	now       func() time.Time
}

// NewBroadcaster builds a broadcaster over the transport. A nil transport
// yields a broadcaster that silently does nothing, mirroring the
// registry's single-simulation mode.
func NewBroadcaster(transport Transport, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Every(netconfig.BroadcastInterval), 1),
		log:       log.With().Str("sys", "broadcast").Logger(),
		now:       time.Now,
	}
}

// CaptureAndSend snapshots state and broadcasts it if the interval has
// elapsed and at least one peer is reachable. Returns whether a send
// actually went out. A transport failure is logged and counts as a spent
// interval; it never stops future attempts.
func (b *Broadcaster) CaptureAndSend(state LocalState) bool {
	if b.transport == nil {
		return false
	}
	sess := b.transport.Session()
	if !sess.Ready() || sess.Reachable() == 0 {
		return false
	}
	if !b.limiter.AllowN(b.now(), 1) {
		return false
	}

	b.seq++
	snap := messages.StateSnapshot{
		Seq:       b.seq,
		RootPos:   state.Root.Pos,
		RootRot:   state.Root.Rot,
		HasDetail: state.HasDetail,
		Surge:     state.Surge,
		SentAt:    b.now().UnixMilli(),
	}
	if state.HasDetail {
		snap.DetailPos = state.Detail.Pos
		snap.DetailRot = state.Detail.Rot
	}

	payload, err := messages.Encode(messages.KindSnapshot, &snap)
	if err != nil {
		b.log.Error().Err(err).Msg("snapshot encode failed")
		return false
	}
	if err := b.transport.Broadcast(payload); err != nil {
		b.log.Warn().Err(err).Uint32("seq", snap.Seq).Msg("snapshot broadcast failed, skipping interval")
		return false
	}
	return true
}

// SendWeather broadcasts a host weather decision. Weather events are rare,
// so they bypass the snapshot throttle, but they share its eligibility
// rules and its swallow-and-log failure handling.
func (b *Broadcaster) SendWeather(ev messages.WeatherEvent) {
	if b.transport == nil {
		return
	}
	sess := b.transport.Session()
	if !sess.Ready() || sess.Reachable() == 0 {
		return
	}

	payload, err := messages.Encode(messages.KindWeather, &ev)
	if err != nil {
		b.log.Error().Err(err).Msg("weather encode failed")
		return
	}
	if err := b.transport.Broadcast(payload); err != nil {
		b.log.Warn().Err(err).Msg("weather broadcast failed")
	}
}
