// Package relay moves gameplay messages between the two participants of a
// session without looking inside them.
package relay

import (
	"context"
	"expvar"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"duel-relay/internal/channel"
	"duel-relay/internal/message"
	"duel-relay/internal/session"
)

var (
	metricRouted         = expvar.NewInt("relay_messages_routed_total")
	metricUnknownSender  = expvar.NewInt("relay_unknown_sender_total")
	metricHandlerFailure = expvar.NewInt("relay_handler_errors_total")
)

// Router dispatches by message type. Types without a registered handler are
// reflected to the peer.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

func NewRouter(sender channel.Sender) *Router {
	return &Router{
		handlers: map[string]Handler{},
		fallback: NewReflector(sender),
	}
}

// Handle registers h for tag. Tags match case-insensitively; registering a
// tag twice replaces the earlier handler.
func (r *Router) Handle(tag string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[message.NormalizeType(tag)] = h
}

func (r *Router) handler(tag string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[message.NormalizeType(tag)]; ok {
		return h
	}
	return r.fallback
}

func (r *Router) Route(ctx context.Context, sess *session.Session, env message.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	from, ok := sess.SlotOfPlayer(env.User)
	if !ok {
		metricUnknownSender.Add(1)
		log.Error().
			Str("session_id", sess.ID).
			Str("user", env.User).
			Str("type", env.Type).
			Msg("message from unknown sender")
		return fmt.Errorf("%w: %q in session %s", session.ErrUnknownSender, env.User, sess.ID)
	}
	if err := r.handler(env.Type).Handle(ctx, sess, from, env.Message); err != nil {
		metricHandlerFailure.Add(1)
		log.Error().Err(err).Str("session_id", sess.ID).Str("type", env.Type).Msg("message handler failed")
		return fmt.Errorf("handle %s: %w", message.NormalizeType(env.Type), err)
	}
	metricRouted.Add(1)
	log.Debug().Str("session_id", sess.ID).Int("from", from).Str("type", env.Type).Msg("message routed")
	return nil
}
