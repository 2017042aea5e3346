package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

// LobbyRegistration advertises a hosted session on the master lobby and
// keeps it alive with heartbeats. Only hosts run one; losing the master is
// never fatal to a running session, it just stops being discoverable.
type LobbyRegistration struct {
	masterURL string
	name      string
	hostAddr  string
	transport string
	region    string
	maxPeers  int
	sessionID string
	session   Session
	client    *http.Client
	log       zerolog.Logger
	stopCh    chan struct{}
}

type lobbyRegisterRequest struct {
	Name      string `json:"name"`
	HostAddr  string `json:"hostAddr"`
	Transport string `json:"transport"`
	Players   int    `json:"players"`
	MaxPlayer int    `json:"maxPlayers"`
	Version   string `json:"version"`
	Region    string `json:"region"`
}

type lobbyRegisterResponse struct {
	ID string `json:"id"`
}

type lobbyHeartbeatRequest struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
}

// LobbySession describes one joinable session as listed by the master.
type LobbySession struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HostAddr  string `json:"hostAddr"`
	Transport string `json:"transport"`
	Players   int    `json:"players"`
	MaxPlayer int    `json:"maxPlayers"`
	Version   string `json:"version"`
	Region    string `json:"region"`
}

func NewLobbyRegistration(masterURL, name, hostAddr, transport, region string, maxPeers int, sess Session, log zerolog.Logger) *LobbyRegistration {
	return &LobbyRegistration{
		masterURL: masterURL,
		name:      name,
		hostAddr:  hostAddr,
		transport: transport,
		region:    region,
		maxPeers:  maxPeers,
		session:   sess,
		client:    &http.Client{Timeout: 5 * time.Second},
		log:       log.With().Str("sys", "lobby").Logger(),
		stopCh:    make(chan struct{}),
	}
}

func (l *LobbyRegistration) Start() {
	if err := l.register(); err != nil {
		l.log.Warn().Err(err).Msg("initial registration failed")
	}
	go l.heartbeatLoop()
}

func (l *LobbyRegistration) Stop() {
	close(l.stopCh)
}

func (l *LobbyRegistration) register() error {
	body, err := json.Marshal(lobbyRegisterRequest{
		Name:      l.name,
		HostAddr:  l.hostAddr,
		Transport: l.transport,
		Players:   len(l.session.PeerIDs()),
		MaxPlayer: l.maxPeers,
		Version:   netconfig.ProtocolVersion,
		Region:    l.region,
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	resp, err := l.client.Post(l.masterURL+"/sessions/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result lobbyRegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	l.sessionID = result.ID
	l.log.Info().Str("id", l.sessionID).Msg("registered with master")
	return nil
}

func (l *LobbyRegistration) heartbeatLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.sendHeartbeat(); err != nil {
				l.log.Warn().Err(err).Msg("heartbeat failed")
			}
		}
	}
}

func (l *LobbyRegistration) sendHeartbeat() error {
	body, err := json.Marshal(lobbyHeartbeatRequest{
		ID:      l.sessionID,
		Players: len(l.session.PeerIDs()),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	resp, err := l.client.Post(l.masterURL+"/sessions/heartbeat", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		l.log.Info().Msg("master lost our registration, re-registering")
		return l.register()
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// ListLobbySessions fetches the joinable sessions from the master. The
// master filters the listing to our protocol version, so incompatible
// sessions never show up in the browser.
func ListLobbySessions(masterURL string) ([]LobbySession, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(masterURL + "/sessions?version=" + url.QueryEscape(netconfig.ProtocolVersion))
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var sessions []LobbySession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return sessions, nil
}
