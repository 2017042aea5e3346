package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(time.Minute, zerolog.Nop())
	t.Cleanup(reg.Stop)
	return reg
}

func registerBody() string {
	return `{"name":"Harbor","hostAddr":"1.2.3.4:7420","transport":"ws","players":1,"maxPlayers":8,"version":"wow4/1","region":"eu"}`
}

func TestRegisterSession_CreatesAndLists(t *testing.T) {
	reg := newTestRegistry(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions/register", strings.NewReader(registerBody()))
	rec := httptest.NewRecorder()
	RegisterSession(reg, zerolog.Nop())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp registerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)

	listRec := httptest.NewRecorder()
	ListSessions(reg, zerolog.Nop())(listRec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	var sessions []SessionInfo
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, resp.ID, sessions[0].ID)
	assert.Equal(t, "Harbor", sessions[0].Name)
	assert.Equal(t, "ws", sessions[0].Transport)
}

func TestRegisterSession_RejectsBadRequests(t *testing.T) {
	reg := newTestRegistry(t)
	handler := RegisterSession(reg, zerolog.Nop())

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing name", `{"hostAddr":"1.2.3.4:7420","transport":"ws"}`},
		{"missing hostAddr", `{"name":"x","transport":"ws"}`},
		{"unknown transport", `{"name":"x","hostAddr":"1.2.3.4:7420","transport":"pigeon"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodPost, "/sessions/register", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Empty(t, reg.List("", ""))
}

func TestListSessions_FiltersByVersionAndTransport(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Register(SessionInfo{Name: "old", HostAddr: "x:1", Transport: "ws", Version: "wow4/0"})
	reg.Register(SessionInfo{Name: "wsnew", HostAddr: "x:2", Transport: "ws", Version: "wow4/1"})
	reg.Register(SessionInfo{Name: "kcpnew", HostAddr: "x:3", Transport: "kcp", Version: "wow4/1"})

	list := func(query string) []SessionInfo {
		rec := httptest.NewRecorder()
		ListSessions(reg, zerolog.Nop())(rec, httptest.NewRequest(http.MethodGet, "/sessions"+query, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var sessions []SessionInfo
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&sessions))
		return sessions
	}

	assert.Len(t, list(""), 3)

	byVersion := list("?version=wow4%2F1")
	require.Len(t, byVersion, 2)
	for _, s := range byVersion {
		assert.Equal(t, "wow4/1", s.Version)
	}

	both := list("?version=wow4%2F1&transport=kcp")
	require.Len(t, both, 1)
	assert.Equal(t, "kcpnew", both[0].Name)

	assert.Empty(t, list("?version=wow4%2F9"))
}

func TestRegistry_ListHidesExpiredBeforeSweep(t *testing.T) {
	reg := NewRegistry(20*time.Millisecond, zerolog.Nop())
	t.Cleanup(reg.Stop)

	id := reg.Register(SessionInfo{Name: "Harbor", HostAddr: "x:1", Transport: "ws"})
	require.Len(t, reg.List("", ""), 1)

	time.Sleep(30 * time.Millisecond)

	// The 30s sweep has not run, but listings must not advertise it.
	assert.Empty(t, reg.List("", ""))

	// A heartbeat inside the sweep window revives it.
	require.True(t, reg.Heartbeat(id, 2))
	assert.Len(t, reg.List("", ""), 1)
}

func TestHeartbeat_RefreshesKnownSession(t *testing.T) {
	reg := newTestRegistry(t)
	id := reg.Register(SessionInfo{Name: "Harbor", HostAddr: "1.2.3.4:7420", Transport: "ws", Players: 1})

	rec := httptest.NewRecorder()
	body := `{"id":"` + id + `","players":3}`
	Heartbeat(reg)(rec, httptest.NewRequest(http.MethodPost, "/sessions/heartbeat", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, reg.List("", ""), 1)
	assert.Equal(t, 3, reg.List("", "")[0].Players)
}

func TestHeartbeat_UnknownSessionIs404(t *testing.T) {
	reg := newTestRegistry(t)

	rec := httptest.NewRecorder()
	Heartbeat(reg)(rec, httptest.NewRequest(http.MethodPost, "/sessions/heartbeat", strings.NewReader(`{"id":"nope","players":1}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistry_HeartbeatAfterExpiryFails(t *testing.T) {
	reg := newTestRegistry(t)

	assert.False(t, reg.Heartbeat("never-registered", 1))
}

func TestRegistry_RegisterAssignsUniqueIDs(t *testing.T) {
	reg := newTestRegistry(t)

	a := reg.Register(SessionInfo{Name: "a", HostAddr: "x:1", Transport: "ws"})
	b := reg.Register(SessionInfo{Name: "b", HostAddr: "x:2", Transport: "kcp"})

	assert.NotEqual(t, a, b)
	assert.Len(t, reg.List("", ""), 2)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
