package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"duel-relay/internal/channel"
	"duel-relay/internal/lobby"
	"duel-relay/internal/relay"
	"duel-relay/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Deps are the services the HTTP surface fronts.
type Deps struct {
	Store    session.Store
	Lobby    *lobby.Service
	Relay    *relay.Router
	Presence channel.Presence
	Hub      *channel.Hub
}

// logBodyBytes bounds how much of each request body reaches the access log.
const logBodyBytes = 2048

func NewRouter(d Deps) *chi.Mux {
	lobbyHandlers := NewLobbyHandlers(d.Lobby)
	messageHandlers := NewMessageHandlers(d.Lobby, d.Relay)
	presenceHandlers := NewPresenceHandlers(d.Presence)
	adminHandlers := NewAdminHandlers(d.Store)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		// The websocket hijacks the connection, so it stays outside the
		// access log wrapper.
		if d.Hub != nil {
			r.Get("/channel", d.Hub.ServeWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(APILogMiddleware())
			r.Use(BodyCaptureMiddleware(logBodyBytes))
			r.Get("/sessions", lobbyHandlers.List())
			r.Post("/sessions", lobbyHandlers.Create())
			r.Post("/sessions/{session_id}/join", lobbyHandlers.Join())
			r.Post("/sessions/{session_id}/messages", messageHandlers.Post())

			r.Post("/channel/connected", presenceHandlers.Connected())
			r.Post("/channel/disconnected", presenceHandlers.Disconnected())
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
