package network

import (
	"github.com/JayBlankenship/WorldofWater4/ocean"
	"github.com/JayBlankenship/WorldofWater4/shared/messages"
)

// WireWeather makes the session host authoritative for weather: the host's
// locally rolled decisions are broadcast, and every peer applies events
// received from the host. Events claiming to come from anyone but the host
// are ignored — that is the only trust decision the weather path makes.
func WireWeather(w *ocean.Weather, reg *Registry, b *Broadcaster, sess Session) {
	if sess.IsHost() {
		w.OnEvent(func(ev ocean.Event) {
			b.SendWeather(weatherToWire(ev))
		})
		return
	}

	hostID := sess.HostID()
	reg.OnWeather(func(fromID string, ev messages.WeatherEvent) {
		if fromID != hostID {
			return
		}
		w.ApplyEvent(weatherFromWire(ev))
	})
}

func weatherToWire(ev ocean.Event) messages.WeatherEvent {
	out := messages.WeatherEvent{
		TargetAmplitude: ev.TargetAmplitude,
		TargetSpeed:     ev.TargetSpeed,
		Transition:      ev.Transition,
	}
	if ev.Zone != nil {
		out.Zone = &messages.ZoneSpawn{
			Center:    ev.Zone.Center,
			Radius:    ev.Zone.Radius,
			Intensity: ev.Zone.Intensity,
			Phase:     ev.Zone.Phase,
			TTL:       ev.Zone.TTL,
		}
	}
	return out
}

func weatherFromWire(ev messages.WeatherEvent) ocean.Event {
	out := ocean.Event{
		TargetAmplitude: ev.TargetAmplitude,
		TargetSpeed:     ev.TargetSpeed,
		Transition:      ev.Transition,
	}
	if ev.Zone != nil {
		out.Zone = &ocean.ZoneSpec{
			Center:    ev.Zone.Center,
			Radius:    ev.Zone.Radius,
			Intensity: ev.Zone.Intensity,
			Phase:     ev.Zone.Phase,
			TTL:       ev.Zone.TTL,
		}
	}
	return out
}
