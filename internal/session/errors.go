package session

import "errors"

var (
	ErrNotFound       = errors.New("session_not_found")
	ErrSessionFull    = errors.New("session_full")
	ErrStaleIdentity  = errors.New("stale_identity")
	ErrUnknownSender  = errors.New("unknown_sender")
	ErrConflict       = errors.New("session_conflict")
	ErrInvalidRequest = errors.New("invalid_request")
)
