package httptransport

import (
	"context"
	"errors"
	"net/http"

	"duel-relay/internal/channel"
	"duel-relay/internal/session"
)

// PresenceHandlers accept connect and disconnect callbacks from a push
// transport that runs outside this process.
type PresenceHandlers struct {
	presence channel.Presence
}

func NewPresenceHandlers(p channel.Presence) *PresenceHandlers {
	return &PresenceHandlers{presence: p}
}

func (h *PresenceHandlers) Connected() http.HandlerFunc {
	return h.handle(h.presence.OnConnected)
}

func (h *PresenceHandlers) Disconnected() http.HandlerFunc {
	return h.handle(h.presence.OnDisconnected)
}

func (h *PresenceHandlers) handle(event func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricPresenceWebhookTotal.Add(1)
		if err := r.ParseForm(); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		from := r.PostForm.Get("from")
		if from == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		err := event(r.Context(), from)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		case errors.Is(err, session.ErrStaleIdentity):
			// Logged by the tracker; nothing for the caller to retry.
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": true})
		default:
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
		}
	}
}
