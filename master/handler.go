package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

type registerRequest struct {
	Name      string `json:"name"`
	HostAddr  string `json:"hostAddr"`
	Transport string `json:"transport"`
	Players   int    `json:"players"`
	MaxPlayer int    `json:"maxPlayers"`
	Version   string `json:"version"`
	Region    string `json:"region"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type heartbeatRequest struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
}

func ListSessions(reg *Registry, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		sessions := reg.List(r.URL.Query().Get("version"), r.URL.Query().Get("transport"))
		if err := json.NewEncoder(w).Encode(sessions); err != nil {
			log.Error().Err(err).Msg("list encode error")
		}
	}
}

const maxRequestBody = 1 << 16 // 64 KB

func RegisterSession(reg *Registry, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.HostAddr == "" {
			http.Error(w, `{"error":"name and hostAddr required"}`, http.StatusBadRequest)
			return
		}
		if req.Transport != "ws" && req.Transport != "kcp" {
			http.Error(w, `{"error":"transport must be ws or kcp"}`, http.StatusBadRequest)
			return
		}

		id := reg.Register(SessionInfo{
			Name:      req.Name,
			HostAddr:  req.HostAddr,
			Transport: req.Transport,
			Players:   req.Players,
			MaxPlayer: req.MaxPlayer,
			Version:   req.Version,
			Region:    req.Region,
		})

		log.Info().Str("session", req.Name).Str("hostAddr", req.HostAddr).Str("id", id).Msg("registered session")

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(registerResponse{ID: id})
	}
}

func Heartbeat(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		var req heartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}

		if !reg.Heartbeat(req.ID, req.Players) {
			http.Error(w, `{"error":"unknown session"}`, http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
