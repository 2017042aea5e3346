// WorldofWater peer. Runs the local vehicle simulation on the procedural
// ocean and replicates it to every other peer in the session. Rendering is
// a separate concern; this binary is fully headless.
package main

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/JayBlankenship/WorldofWater4/config"
	"github.com/JayBlankenship/WorldofWater4/network"
	"github.com/JayBlankenship/WorldofWater4/ocean"
)

const (
	joinTimeout       = 10 * time.Second
	reconcileInterval = 3.0 // seconds between safety-net membership passes
	statusInterval    = 5.0 // seconds between status log lines
)

func main() {
	configDir := pflag.String("config", ".", "directory containing worldofwater.yaml")
	hostFlag := pflag.Bool("host", false, "host a session (overrides config)")
	addrFlag := pflag.String("addr", "", "host address to join (overrides config)")
	seedFlag := pflag.Int64("seed", 0, "ocean seed for single-simulation runs")
	listFlag := pflag.Bool("list", false, "list joinable sessions on the master and exit")
	pflag.Parse()

	settings, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *hostFlag {
		settings.Host = true
	}
	if *addrFlag != "" {
		settings.HostAddr = *addrFlag
	}
	if *seedFlag != 0 {
		settings.OceanSeed = *seedFlag
	}

	if *listFlag {
		if settings.MasterURL == "" {
			fmt.Fprintln(os.Stderr, "no masterUrl configured")
			os.Exit(1)
		}
		sessions, err := network.ListLobbySessions(settings.MasterURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list sessions: %v\n", err)
			os.Exit(1)
		}
		for _, s := range sessions {
			fmt.Printf("%-16s %-20s %-5s %d/%d %s\n",
				s.ID, s.Name, s.Transport, s.Players, s.MaxPlayer, s.HostAddr)
		}
		return
	}

	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().
		Timestamp().Str("app", "worldofwater").Logger()

	prefs := loadPrefs(log)
	if prefs != nil && prefs.PeerName != "" && settings.PeerName == "skipper" {
		settings.PeerName = prefs.PeerName
	}

	peerID := newPeerID()
	log.Info().Str("peer", peerID).Str("name", settings.PeerName).
		Bool("host", settings.Host).Msg("starting peer")

	transport := openTransport(settings, peerID, log)

	var lobby *network.LobbyRegistration
	if transport != nil && settings.Host && settings.MasterURL != "" {
		lobby = network.NewLobbyRegistration(
			settings.MasterURL, settings.PeerName+"'s session", settings.ListenAddr,
			settings.Transport, settings.Region, settings.MaxPeers,
			transport.Session(), log,
		)
		lobby.Start()
	}

	weather := buildWeather(settings, transport, log)
	registry := network.NewRegistry(transport, nil, log)
	broadcaster := network.NewBroadcaster(transport, log)
	if transport != nil && registry.Networked() {
		network.WireWeather(weather, registry, broadcaster, transport.Session())
	}

	savePrefs(settings, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	runLoop(settings, weather, registry, broadcaster, transport, stop, log)

	if lobby != nil {
		lobby.Stop()
	}
	if transport != nil {
		if err := transport.Close(); err != nil {
			log.Warn().Err(err).Msg("transport close")
		}
	}
	log.Info().Msg("peer stopped")
}

// runLoop drives the whole simulation on a single goroutine at the
// configured tick rate. Transports only enqueue; everything that touches
// sim state happens here.
func runLoop(s *config.Settings, weather *ocean.Weather, registry *network.Registry,
	broadcaster *network.Broadcaster, transport network.Transport,
	stop <-chan os.Signal, log zerolog.Logger) {

	dt := 1.0 / float64(s.TickRate)
	ticker := time.NewTicker(time.Second / time.Duration(s.TickRate))
	defer ticker.Stop()

	boat := newVehicle(s.PeerName)
	simTime := 0.0
	lastReconcile := 0.0
	lastStatus := 0.0

	log.Info().Int("tickRate", s.TickRate).Bool("networked", registry.Networked()).
		Msg("simulation running")

	for {
		select {
		case <-stop:
			log.Info().Msg("shutdown requested")
			return
		case <-ticker.C:
			simTime += dt

			if transport != nil {
				transport.Pump()
			}

			weather.Step(dt)
			boat.update(dt, simTime, weather)

			broadcaster.CaptureAndSend(boat.state())
			registry.TickAll(dt)

			if transport != nil && simTime-lastReconcile >= reconcileInterval {
				lastReconcile = simTime
				registry.Reconcile(transport.Session().PeerIDs())
			}

			if simTime-lastStatus >= statusInterval {
				lastStatus = simTime
				log.Debug().
					Float64("x", boat.pos.X).Float64("y", boat.pos.Y).Float64("z", boat.pos.Z).
					Bool("surge", boat.surge).Int("replicas", registry.Count()).
					Msg("status")
			}
		}
	}
}

// openTransport opens the configured transport, or returns nil for a
// single-simulation run (no live session within the join timeout).
func openTransport(s *config.Settings, peerID string, log zerolog.Logger) network.Transport {
	switch {
	case s.Host && s.Transport == "kcp":
		t, err := network.NewKcpHost(s.ListenAddr, peerID, s.PeerName, log)
		if err != nil {
			log.Warn().Err(err).Msg("kcp host failed, running single-simulation")
			return nil
		}
		return t
	case s.Host:
		t, err := network.NewWsHost(listenPort(s.ListenAddr), peerID, s.PeerName, log)
		if err != nil {
			log.Warn().Err(err).Msg("ws host failed, running single-simulation")
			return nil
		}
		return t
	case s.Transport == "kcp":
		t, err := network.NewKcpClient(s.HostAddr, peerID, s.PeerName, log)
		if err != nil {
			log.Warn().Err(err).Msg("kcp join failed, running single-simulation")
			return nil
		}
		if !t.WaitReady(joinTimeout) {
			log.Warn().Msg("session not ready in time, running single-simulation")
			_ = t.Close()
			return nil
		}
		return t
	default:
		t := network.NewWsClient(s.HostAddr, peerID, s.PeerName, log)
		if !t.WaitReady(joinTimeout) {
			log.Warn().Msg("session not ready in time, running single-simulation")
			_ = t.Close()
			return nil
		}
		return t
	}
}

// buildWeather picks who rolls the weather dice: the host (or a lone peer)
// evolves it locally, everyone else is driven by host events.
func buildWeather(s *config.Settings, transport network.Transport, log zerolog.Logger) *ocean.Weather {
	if transport != nil && transport.Session().Ready() && !transport.Session().IsHost() {
		log.Info().Msg("weather driven by session host")
		return ocean.NewDrivenWeather()
	}

	seed := s.OceanSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Info().Int64("seed", seed).Msg("weather rolled locally")
	return ocean.NewWeather(mrand.New(mrand.NewSource(seed)))
}

func loadPrefs(log zerolog.Logger) *config.Prefs {
	store, err := config.OpenPrefs()
	if err != nil {
		log.Warn().Err(err).Msg("prefs storage unavailable")
		return nil
	}
	prefs, err := store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load prefs")
		return nil
	}
	return prefs
}

func savePrefs(s *config.Settings, log zerolog.Logger) {
	store, err := config.OpenPrefs()
	if err != nil {
		return
	}
	if err := store.Save(config.Prefs{
		PeerName:     s.PeerName,
		LastHostAddr: s.HostAddr,
	}); err != nil {
		log.Warn().Err(err).Msg("could not save prefs")
	}
}

func newPeerID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

func listenPort(addr string) uint {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 7420
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 7420
	}
	return uint(port)
}
