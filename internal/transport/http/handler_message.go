package httptransport

import (
	"io"
	"net/http"

	"duel-relay/internal/lobby"
	"duel-relay/internal/message"
	"duel-relay/internal/relay"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxMessageBytes = 64 << 10

type MessageHandlers struct {
	lobby *lobby.Service
	relay *relay.Router
}

func NewMessageHandlers(l *lobby.Service, r *relay.Router) *MessageHandlers {
	return &MessageHandlers{lobby: l, relay: r}
}

// Post relays one gameplay envelope. Rejections carry only a status code.
func (h *MessageHandlers) Post() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricMessageTotal.Add(1)
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
		if err != nil {
			metricMessageErrors.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		env, err := message.DecodeEnvelope(raw)
		if err != nil {
			h.reject(w, err)
			return
		}
		sess, err := h.lobby.Get(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			h.reject(w, err)
			return
		}
		if err := h.relay.Route(r.Context(), sess, env); err != nil {
			h.reject(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *MessageHandlers) reject(w http.ResponseWriter, err error) {
	metricMessageErrors.Add(1)
	status, code := MapMessageError(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("relay message failed")
	} else {
		log.Debug().Err(err).Str("code", code).Msg("message rejected")
	}
	w.WriteHeader(status)
}
