package httptransport

import (
	"context"
	"net/http"

	"duel-relay/internal/session"
)

type AdminHandlers struct {
	store session.Store
}

func NewAdminHandlers(st session.Store) *AdminHandlers {
	return &AdminHandlers{store: st}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := h.store.(interface{ Ping(context.Context) error })
		if ok {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "down"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "up"})
	}
}
