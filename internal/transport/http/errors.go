package httptransport

import (
	"errors"
	"net/http"

	"duel-relay/internal/message"
	"duel-relay/internal/session"
)

func MapJoinError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, session.ErrSessionFull):
		return http.StatusConflict, "session_full"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func MapMessageError(err error) (int, string) {
	switch {
	case errors.Is(err, message.ErrInvalidEnvelope):
		return http.StatusBadRequest, "invalid_envelope"
	case errors.Is(err, session.ErrUnknownSender):
		return http.StatusBadRequest, "unknown_sender"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
