package main

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SessionInfo describes a joinable session visible to browsing peers.
type SessionInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HostAddr  string `json:"hostAddr"`
	Transport string `json:"transport"` // "ws" or "kcp"
	Players   int    `json:"players"`
	MaxPlayer int    `json:"maxPlayers"`
	Version   string `json:"version"`
	Region    string `json:"region"`
}

type sessionRecord struct {
	SessionInfo
	LastSeen time.Time
}

// Registry is an in-memory store of open sessions with TTL-based expiry.
// Hosts register and heartbeat; sessions that stop heartbeating disappear.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	ttl      time.Duration
	stopCh   chan struct{}
	log      zerolog.Logger
}

func NewRegistry(ttl time.Duration, log zerolog.Logger) *Registry {
	r := &Registry{
		sessions: make(map[string]*sessionRecord),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
		log:      log,
	}
	go r.cleanupLoop()
	return r
}

func (r *Registry) Stop() {
	close(r.stopCh)
}

func (r *Registry) Register(info SessionInfo) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	id := fmt.Sprintf("%x", b)

	info.ID = id

	r.mu.Lock()
	r.sessions[id] = &sessionRecord{
		SessionInfo: info,
		LastSeen:    time.Now(),
	}
	r.mu.Unlock()

	return id
}

// Heartbeat refreshes a session's TTL and player count. Returns false for
// unknown (possibly expired) session ids.
func (r *Registry) Heartbeat(id string, players int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return false
	}
	rec.LastSeen = time.Now()
	rec.Players = players
	return true
}

// List returns the live sessions, optionally narrowed by protocol version
// and transport (empty string matches anything). Records past the TTL are
// hidden immediately, the sweep only reclaims the memory.
func (r *Registry) List(version, transport string) []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	result := make([]SessionInfo, 0, len(r.sessions))
	for _, rec := range r.sessions {
		if now.Sub(rec.LastSeen) >= r.ttl {
			continue
		}
		if version != "" && rec.Version != version {
			continue
		}
		if transport != "" && rec.Transport != transport {
			continue
		}
		result = append(result, rec.SessionInfo)
	}
	return result
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := time.Now()
			for id, rec := range r.sessions {
				if now.Sub(rec.LastSeen) >= r.ttl {
					r.log.Info().
						Str("session", rec.Name).
						Str("id", id).
						Dur("lastSeen", now.Sub(rec.LastSeen).Round(time.Second)).
						Msg("expired session")
					delete(r.sessions, id)
				}
			}
			r.mu.Unlock()
		}
	}
}
