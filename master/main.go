// The master binary is the session lobby: hosts register their open
// sessions here and browsing peers list them. It never touches game
// traffic; once a peer has a host address it talks to the host directly.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	port := flag.Int("port", 8080, "HTTP listen port")
	ttl := flag.Duration("ttl", 90*time.Second, "Session TTL before expiry")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().Str("app", "master").Logger()

	reg := NewRegistry(*ttl, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", ListSessions(reg, log))
	mux.HandleFunc("POST /sessions/register", RegisterSession(reg, log))
	mux.HandleFunc("POST /sessions/heartbeat", Heartbeat(reg))
	mux.HandleFunc("GET /health", Health())

	addr := fmt.Sprintf(":%d", *port)
	log.Info().Str("addr", addr).Dur("ttl", *ttl).Msg("starting")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("listen failed")
	}
}
