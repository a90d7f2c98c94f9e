package relay

import (
	"context"
	"encoding/json"

	"duel-relay/internal/channel"
	"duel-relay/internal/session"
)

// Handler processes one gameplay message. from is the sender's slot.
type Handler interface {
	Handle(ctx context.Context, sess *session.Session, from int, payload json.RawMessage) error
}

type HandlerFunc func(ctx context.Context, sess *session.Session, from int, payload json.RawMessage) error

func (f HandlerFunc) Handle(ctx context.Context, sess *session.Session, from int, payload json.RawMessage) error {
	return f(ctx, sess, from, payload)
}

// Reflector forwards the payload untouched to the other slot.
type Reflector struct {
	sender channel.Sender
}

func NewReflector(sender channel.Sender) *Reflector {
	return &Reflector{sender: sender}
}

func (r *Reflector) Handle(_ context.Context, sess *session.Session, from int, payload json.RawMessage) error {
	r.sender.Send(sess.Slots[session.Peer(from)].ClientID, payload)
	return nil
}
