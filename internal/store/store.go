package store

import "duel-relay/internal/session"

var (
	_ session.Store = (*Memory)(nil)
	_ session.Store = (*Postgres)(nil)
)
