package httptransport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"duel-relay/internal/channel"
	"duel-relay/internal/lobby"
	"duel-relay/internal/message"
	"duel-relay/internal/presence"
	"duel-relay/internal/relay"
	"duel-relay/internal/session"
	"duel-relay/internal/store"
	"duel-relay/internal/testutil"

	"github.com/go-chi/chi/v5"
)

type testServer struct {
	router *chi.Mux
	rec    *testutil.Recorder
	store  *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemory()
	rec := testutil.NewRecorder()
	hub := channel.NewHub(channel.Options{})
	t.Cleanup(hub.Close)
	tracker := presence.NewTracker(st, rec, 0)
	hub.SetPresence(tracker)
	r := NewRouter(Deps{
		Store:    st,
		Lobby:    lobby.NewService(st, hub, 0),
		Relay:    relay.NewRouter(rec),
		Presence: tracker,
		Hub:      hub,
	})
	return &testServer{router: r, rec: rec, store: st}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) postJSON(path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return s.do(req)
}

func (s *testServer) postForm(path, from string) *httptest.ResponseRecorder {
	form := url.Values{"from": {from}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func decodeJoin(t *testing.T, w *httptest.ResponseRecorder) joinResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var res joinResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	return res
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"store":"up"`) {
		t.Fatalf("unexpected health %d %s", w.Code, w.Body.String())
	}
}

func TestCreateJoinAndFull(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/sessions", `{"name":"duel","player":"Carol"}`)
	carol := decodeJoin(t, w)
	if carol.ClientID != session.ClientIDFor(carol.SessionID, 0) || carol.ChannelToken == "" {
		t.Fatalf("unexpected create response %+v", carol)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != PlayerCookie || cookies[0].Value != carol.ClientID {
		t.Fatalf("expected %s cookie, got %+v", PlayerCookie, cookies)
	}

	dave := decodeJoin(t, s.postJSON("/api/sessions/"+carol.SessionID+"/join", `{"player":"Dave"}`))
	if dave.ClientID != session.ClientIDFor(carol.SessionID, 1) {
		t.Fatalf("unexpected join response %+v", dave)
	}

	w = s.postJSON("/api/sessions/"+carol.SessionID+"/join", `{"player":"Eve"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body["error"] != "session_full" || body["name"] != "duel" {
		t.Fatalf("unexpected error body %v", body)
	}

	// The cookie brings Carol back to her own slot.
	again := decodeJoin(t, s.postJSON("/api/sessions/"+carol.SessionID+"/join", `{"player":"Carol"}`, cookies[0]))
	if !again.Rejoined || again.ClientID != carol.ClientID {
		t.Fatalf("expected rejoin, got %+v", again)
	}
}

func TestJoinErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		path   string
		body   string
		status int
		code   string
	}{
		{"/api/sessions/missing/join", `{"player":"Carol"}`, http.StatusNotFound, "session_not_found"},
		{"/api/sessions", `{"name":"","player":"Carol"}`, http.StatusBadRequest, "invalid_request"},
		{"/api/sessions", `{"name":"duel"}`, http.StatusBadRequest, "invalid_request"},
		{"/api/sessions", `not json`, http.StatusBadRequest, "invalid_json"},
	}
	for _, tc := range tests {
		w := s.postJSON(tc.path, tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.path, tc.body, tc.status, w.Code)
		}
		if got := decodeError(t, w)["error"]; got != tc.code {
			t.Fatalf("%s %s: expected %s, got %s", tc.path, tc.body, tc.code, got)
		}
	}
}

func TestListSessions(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 2; i++ {
		decodeJoin(t, s.postJSON("/api/sessions", fmt.Sprintf(`{"name":"duel-%d","player":"p%d"}`, i, i)))
	}
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Games []lobby.Summary `json:"games"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Games) != 2 || !body.Games[0].Open {
		t.Fatalf("unexpected games %+v", body.Games)
	}
}

// startMatch creates a session with Alice and Bob both connected.
func startMatch(t *testing.T, s *testServer) string {
	t.Helper()
	alice := decodeJoin(t, s.postJSON("/api/sessions", `{"name":"duel","player":"Alice"}`))
	bob := decodeJoin(t, s.postJSON("/api/sessions/"+alice.SessionID+"/join", `{"player":"Bob"}`))
	for _, id := range []string{alice.ClientID, bob.ClientID} {
		if w := s.postForm("/api/channel/connected", id); w.Code != http.StatusOK {
			t.Fatalf("connect %s: %d %s", id, w.Code, w.Body.String())
		}
	}
	s.rec.Reset()
	return alice.SessionID
}

func TestMessageRelayedToPeer(t *testing.T) {
	s := newTestServer(t)
	id := startMatch(t, s)

	w := s.postJSON("/api/sessions/"+id+"/messages", `{"type":"MOVE","user":"Alice","message":{"card":7}}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	toBob := s.rec.To(session.ClientIDFor(id, 1))
	if len(toBob) != 1 || string(toBob[0].Body) != `{"card":7}` {
		t.Fatalf("unexpected delivery %+v", toBob)
	}
	if n := len(s.rec.To(session.ClientIDFor(id, 0))); n != 0 {
		t.Fatalf("message echoed to sender %d times", n)
	}
}

func TestMessageRejections(t *testing.T) {
	s := newTestServer(t)
	id := startMatch(t, s)
	tests := []struct {
		path   string
		body   string
		status int
	}{
		{"/api/sessions/" + id + "/messages", `{"type":"MOVE","user":"Mallory","message":{"card":7}}`, http.StatusBadRequest},
		{"/api/sessions/" + id + "/messages", `{"type":"MOVE","user":"Alice"}`, http.StatusBadRequest},
		{"/api/sessions/" + id + "/messages", `garbage`, http.StatusBadRequest},
		{"/api/sessions/missing/messages", `{"type":"MOVE","user":"Alice","message":{}}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		w := s.postJSON(tc.path, tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.body, tc.status, w.Code)
		}
		if w.Body.Len() != 0 {
			t.Fatalf("%s: expected empty body, got %q", tc.body, w.Body.String())
		}
	}
	if n := len(s.rec.All()); n != 0 {
		t.Fatalf("expected zero sends, got %d", n)
	}
}

func TestPresenceWebhooks(t *testing.T) {
	s := newTestServer(t)
	id := startMatch(t, s)
	alice, bob := session.ClientIDFor(id, 0), session.ClientIDFor(id, 1)

	if w := s.postForm("/api/channel/disconnected", bob); w.Code != http.StatusOK {
		t.Fatalf("disconnect: %d", w.Code)
	}
	if s.rec.Count(alice, message.TypeDisconnected) != 1 {
		t.Fatalf("expected DISCONNECTED to Alice, got %+v", s.rec.All())
	}
	if w := s.postForm("/api/channel/connected", bob); w.Code != http.StatusOK {
		t.Fatalf("reconnect: %d", w.Code)
	}
	if s.rec.Count(bob, message.TypeWaitForSync) != 1 || s.rec.Count(alice, message.TypeSyncRequest) != 1 {
		t.Fatalf("expected sync handshake, got %+v", s.rec.All())
	}

	w := s.postForm("/api/channel/connected", "nobody-0")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ignored":true`) {
		t.Fatalf("stale identity: %d %s", w.Code, w.Body.String())
	}
	if w := s.postForm("/api/channel/connected", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing from: expected 400, got %d", w.Code)
	}
}

func TestMapErrors(t *testing.T) {
	joinTests := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{&lobby.JoinError{Err: session.ErrNotFound}, http.StatusNotFound, "session_not_found"},
		{&lobby.JoinError{Name: "duel", Err: session.ErrSessionFull}, http.StatusConflict, "session_full"},
		{errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range joinTests {
		if status, code := MapJoinError(tt.err); status != tt.status || code != tt.code {
			t.Fatalf("join %v = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}

	messageTests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", message.ErrInvalidEnvelope), http.StatusBadRequest, "invalid_envelope"},
		{fmt.Errorf("wrap: %w", session.ErrUnknownSender), http.StatusBadRequest, "unknown_sender"},
		{session.ErrNotFound, http.StatusNotFound, "session_not_found"},
		{errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range messageTests {
		if status, code := MapMessageError(tt.err); status != tt.status || code != tt.code {
			t.Fatalf("message %v = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}
