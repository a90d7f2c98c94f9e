package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"duel-relay/internal/lobby"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PlayerCookie holds the client identity between page loads so a returning
// player gets their slot back.
const PlayerCookie = "PLAYER_ID"

type LobbyHandlers struct {
	svc *lobby.Service
}

func NewLobbyHandlers(svc *lobby.Service) *LobbyHandlers {
	return &LobbyHandlers{svc: svc}
}

type joinResponse struct {
	SessionID    string `json:"session_id"`
	Name         string `json:"name"`
	Player       string `json:"player"`
	ClientID     string `json:"client_id"`
	ChannelToken string `json:"channel_token"`
	Rejoined     bool   `json:"rejoined"`
}

func (h *LobbyHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := h.svc.List(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("list sessions failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"games": games})
	}
}

func (h *LobbyHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricJoinTotal.Add(1)
		var body struct {
			Name   string `json:"name"`
			Player string `json:"player"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			metricJoinErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := h.svc.Create(r.Context(), body.Name, body.Player, playerCookie(r))
		if err != nil {
			writeJoinError(w, err)
			return
		}
		writeJoined(w, res)
	}
}

func (h *LobbyHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricJoinTotal.Add(1)
		var body struct {
			Player string `json:"player"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			metricJoinErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := h.svc.Join(r.Context(), chi.URLParam(r, "session_id"), body.Player, playerCookie(r))
		if err != nil {
			writeJoinError(w, err)
			return
		}
		writeJoined(w, res)
	}
}

func playerCookie(r *http.Request) string {
	c, err := r.Cookie(PlayerCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJoined(w http.ResponseWriter, res lobby.JoinResult) {
	http.SetCookie(w, &http.Cookie{Name: PlayerCookie, Value: res.ClientID, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, joinResponse{
		SessionID:    res.SessionID,
		Name:         res.Name,
		Player:       res.Player,
		ClientID:     res.ClientID,
		ChannelToken: res.ChannelToken,
		Rejoined:     res.Rejoined,
	})
}

func writeJoinError(w http.ResponseWriter, err error) {
	metricJoinErrors.Add(1)
	status, code := MapJoinError(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("join failed")
	}
	body := map[string]any{"error": code}
	var je *lobby.JoinError
	if errors.As(err, &je) && je.Name != "" {
		body["name"] = je.Name
	}
	writeJSON(w, status, body)
}
