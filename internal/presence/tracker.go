// Package presence applies channel connect and disconnect events to stored
// sessions and tells the other participant about them.
package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"duel-relay/internal/channel"
	"duel-relay/internal/message"
	"duel-relay/internal/session"
)

const defaultMaxAttempts = 8

// Tracker is stateless between events; the store is the only source of
// truth. Every mutation is a versioned read-modify-save, retried on
// session.ErrConflict, and notifications go out only after the save lands.
type Tracker struct {
	store       session.Store
	sender      channel.Sender
	syncer      *Syncer
	maxAttempts int
}

func NewTracker(st session.Store, sender channel.Sender, maxAttempts int) *Tracker {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Tracker{
		store:       st,
		sender:      sender,
		syncer:      NewSyncer(sender),
		maxAttempts: maxAttempts,
	}
}

func (t *Tracker) OnConnected(ctx context.Context, clientID string) error {
	metricConnectEvents.Add(1)
	for attempt := 1; ; attempt++ {
		sess, slot, err := session.FindByClientID(ctx, t.store, clientID)
		if err != nil {
			return t.resolveFailed("connect", clientID, err)
		}
		res := sess.MarkConnected(slot)
		if res.Duplicate {
			metricDuplicateConnects.Add(1)
			log.Error().
				Str("session_id", sess.ID).
				Str("client_id", clientID).
				Int("slot", slot).
				Msg("slot connected twice")
			return nil
		}

		err = t.store.Save(ctx, sess)
		if t.retry(err, attempt) {
			continue
		}
		if err != nil {
			return t.saveFailed("connect", sess.ID, clientID, err)
		}

		player := sess.Slots[slot].Player
		peer := sess.Slots[session.Peer(slot)]
		t.sender.Send(peer.ClientID, message.Connected(player))
		if res.NeedsSync {
			t.syncer.Begin(clientID, peer.ClientID)
		}
		log.Info().
			Str("session_id", sess.ID).
			Str("client_id", clientID).
			Str("player", player).
			Bool("reconnect", res.NeedsSync).
			Msg("player connected")
		return nil
	}
}

func (t *Tracker) OnDisconnected(ctx context.Context, clientID string) error {
	metricDisconnectEvents.Add(1)
	for attempt := 1; ; attempt++ {
		sess, slot, err := session.FindByClientID(ctx, t.store, clientID)
		if err != nil {
			return t.resolveFailed("disconnect", clientID, err)
		}
		changed := sess.MarkDisconnected(slot)
		if !changed && sess.AnyConnected() {
			return nil
		}

		if changed {
			err = t.store.Save(ctx, sess)
			if t.retry(err, attempt) {
				continue
			}
			if err != nil {
				return t.saveFailed("disconnect", sess.ID, clientID, err)
			}
			player := sess.Slots[slot].Player
			t.sender.Send(sess.Slots[session.Peer(slot)].ClientID, message.Disconnected(player))
			log.Info().
				Str("session_id", sess.ID).
				Str("client_id", clientID).
				Str("player", player).
				Msg("player disconnected")
		}
		if sess.AnyConnected() {
			return nil
		}
		return t.reap(ctx, sess.ID)
	}
}

// reap deletes id if a fresh read still shows nobody connected. Losing the
// delete to another reaper counts as success.
func (t *Tracker) reap(ctx context.Context, id string) error {
	for attempt := 1; ; attempt++ {
		fresh, err := t.store.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reload session %s: %w", id, err)
		}
		if fresh.AnyConnected() {
			log.Debug().Str("session_id", id).Msg("session kept; peer reconnected")
			return nil
		}

		err = t.store.Delete(ctx, fresh)
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		if t.retry(err, attempt) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("session_id", id).Msg("delete session failed")
			return fmt.Errorf("delete session %s: %w", id, err)
		}

		metricSessionsDeleted.Add(1)
		t.forget(fresh)
		log.Info().Str("session_id", id).Str("name", fresh.Name).Msg("session deleted")
		return nil
	}
}

func (t *Tracker) forget(sess *session.Session) {
	f, ok := t.sender.(interface{ Forget(clientID string) })
	if !ok {
		return
	}
	for _, slot := range sess.Slots {
		if slot.ClientID != "" {
			f.Forget(slot.ClientID)
		}
	}
}

func (t *Tracker) retry(err error, attempt int) bool {
	if !errors.Is(err, session.ErrConflict) || attempt >= t.maxAttempts {
		return false
	}
	metricConflictRetries.Add(1)
	return true
}

func (t *Tracker) resolveFailed(event, clientID string, err error) error {
	if errors.Is(err, session.ErrStaleIdentity) {
		metricStaleIdentity.Add(1)
		log.Warn().Str("client_id", clientID).Str("event", event).Msg("stale client identity")
		return err
	}
	log.Error().Err(err).Str("client_id", clientID).Str("event", event).Msg("resolve session failed")
	return fmt.Errorf("resolve %s: %w", clientID, err)
}

func (t *Tracker) saveFailed(event, sessionID, clientID string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		// Deleted between read and write.
		metricStaleIdentity.Add(1)
		log.Warn().Str("session_id", sessionID).Str("client_id", clientID).Str("event", event).Msg("session gone before save")
		return fmt.Errorf("%w: %s", session.ErrStaleIdentity, clientID)
	}
	log.Error().Err(err).Str("session_id", sessionID).Str("client_id", clientID).Str("event", event).Msg("save session failed")
	return fmt.Errorf("save session %s: %w", sessionID, err)
}
