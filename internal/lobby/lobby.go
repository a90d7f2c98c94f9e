// Package lobby creates, lists and joins sessions.
package lobby

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"duel-relay/internal/session"
	"duel-relay/internal/store"
)

var (
	metricCreated  = expvar.NewInt("lobby_sessions_created_total")
	metricJoined   = expvar.NewInt("lobby_joins_total")
	metricRejoined = expvar.NewInt("lobby_rejoins_total")
	metricFull     = expvar.NewInt("lobby_full_rejections_total")
)

const defaultMaxAttempts = 8

// ChannelIssuer mints the token a joined client opens its channel with.
type ChannelIssuer interface {
	CreateChannel(clientID string) (string, error)
}

type JoinResult struct {
	SessionID    string
	Name         string
	Player       string
	ClientID     string
	ChannelToken string
	Rejoined     bool
}

// JoinError carries the session name, when known, alongside the cause.
type JoinError struct {
	Name string
	Err  error
}

func (e *JoinError) Error() string {
	if e.Name == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("join %s: %v", e.Name, e.Err)
}

func (e *JoinError) Unwrap() error { return e.Err }

// Summary is one entry of the browse list.
type Summary struct {
	ID      string   `json:"session_id"`
	Name    string   `json:"name"`
	Players []string `json:"players"`
	Open    bool     `json:"open"`
}

type Service struct {
	store       session.Store
	channels    ChannelIssuer
	maxAttempts int
}

func NewService(st session.Store, channels ChannelIssuer, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Service{store: st, channels: channels, maxAttempts: maxAttempts}
}

// Create makes a new session called name and joins player to it.
func (s *Service) Create(ctx context.Context, name, player, existingClientID string) (JoinResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(player) == "" {
		return JoinResult{}, &JoinError{Name: name, Err: session.ErrInvalidRequest}
	}
	sess := session.New(store.NewID(), name)
	if err := s.store.Create(ctx, sess); err != nil {
		return JoinResult{}, &JoinError{Name: name, Err: fmt.Errorf("create session: %w", err)}
	}
	metricCreated.Add(1)
	log.Info().Str("session_id", sess.ID).Str("name", name).Msg("session created")
	res, err := s.Join(ctx, sess.ID, player, existingClientID)
	if err != nil {
		s.discard(ctx, sess.ID)
		return JoinResult{}, err
	}
	return res, nil
}

// discard removes a session whose creator never got in. It is left alone once
// a second player has joined or anyone has connected.
func (s *Service) discard(ctx context.Context, id string) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return
	}
	if sess.AnyConnected() || sess.Slots[1].Assigned() {
		return
	}
	if err := s.store.Delete(ctx, sess); err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("discard session failed")
		return
	}
	log.Info().Str("session_id", id).Str("name", sess.Name).Msg("session discarded; creator join failed")
}

// Join places player into the session. A caller already holding one of the
// session's identities gets it back unchanged.
func (s *Service) Join(ctx context.Context, sessionID, player, existingClientID string) (JoinResult, error) {
	player = strings.TrimSpace(player)
	for attempt := 1; ; attempt++ {
		sess, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return JoinResult{}, &JoinError{Err: err}
		}
		clientID, rejoined, err := sess.Join(player, existingClientID)
		if err != nil {
			if errors.Is(err, session.ErrSessionFull) {
				metricFull.Add(1)
				log.Warn().Str("session_id", sessionID).Str("player", player).Msg("join rejected; session full")
			}
			return JoinResult{}, &JoinError{Name: sess.Name, Err: err}
		}
		if rejoined {
			slot, _ := sess.SlotOf(clientID)
			player = sess.Slots[slot].Player
			metricRejoined.Add(1)
			log.Info().Str("session_id", sessionID).Str("player", player).Msg("player rejoined")
		} else {
			err = s.store.Save(ctx, sess)
			if errors.Is(err, session.ErrConflict) && attempt < s.maxAttempts {
				continue
			}
			if err != nil {
				return JoinResult{}, &JoinError{Name: sess.Name, Err: fmt.Errorf("save session: %w", err)}
			}
			metricJoined.Add(1)
			log.Info().Str("session_id", sessionID).Str("player", player).Str("client_id", clientID).Msg("player joined")
		}

		token, err := s.channels.CreateChannel(clientID)
		if err != nil {
			return JoinResult{}, &JoinError{Name: sess.Name, Err: fmt.Errorf("create channel: %w", err)}
		}
		return JoinResult{
			SessionID:    sess.ID,
			Name:         sess.Name,
			Player:       player,
			ClientID:     clientID,
			ChannelToken: token,
			Rejoined:     rejoined,
		}, nil
	}
}

func (s *Service) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(all))
	for _, sess := range all {
		sum := Summary{ID: sess.ID, Name: sess.Name, Players: []string{}, Open: !sess.Full()}
		for _, slot := range sess.Slots {
			if slot.Assigned() {
				sum.Players = append(sum.Players, slot.Player)
			}
		}
		out = append(out, sum)
	}
	return out, nil
}
