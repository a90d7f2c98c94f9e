package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"duel-relay/internal/session"
)

const maxInboundBytes = 4096

type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// Hub owns one websocket per client identity. Opening a socket with a token
// from CreateChannel raises a connect event, and closing it raises a
// disconnect event, unless a newer socket for the same identity took over.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	presence Presence
	tokens   map[string]string
	conns    map[string]*conn
	// locks serializes connect and disconnect events per identity so a
	// socket opened during a slow disconnect raises its connect afterwards.
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

type conn struct {
	ws       *websocket.Conn
	clientID string
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func NewHub(opts Options) *Hub {
	return &Hub{
		opts:     opts.withDefaults(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		tokens:   map[string]string{},
		conns:    map[string]*conn{},
		locks:    map[string]*identityLock{},
	}
}

func (h *Hub) lockIdentity(clientID string) {
	h.mu.Lock()
	l := h.locks[clientID]
	if l == nil {
		l = &identityLock{}
		h.locks[clientID] = l
	}
	l.refs++
	h.mu.Unlock()
	l.mu.Lock()
}

func (h *Hub) unlockIdentity(clientID string) {
	h.mu.Lock()
	l := h.locks[clientID]
	l.refs--
	if l.refs == 0 {
		delete(h.locks, clientID)
	}
	h.mu.Unlock()
	l.mu.Unlock()
}

// SetPresence wires the receiver of connect/disconnect events.
func (h *Hub) SetPresence(p Presence) {
	h.mu.Lock()
	h.presence = p
	h.mu.Unlock()
}

// CreateChannel issues the token a client presents when opening its receive
// side.
func (h *Hub) CreateChannel(clientID string) (string, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	h.tokens[token.String()] = clientID
	h.mu.Unlock()
	metricChannelsCreated.Add(1)
	return token.String(), nil
}

// Forget drops every token and the live socket of clientID.
func (h *Hub) Forget(clientID string) {
	h.mu.Lock()
	for token, id := range h.tokens {
		if id == clientID {
			delete(h.tokens, token)
		}
	}
	c := h.conns[clientID]
	delete(h.conns, clientID)
	h.mu.Unlock()
	if c != nil {
		c.close()
	}
}

func (h *Hub) Connected(clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[clientID]
	return ok
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	h.mu.Lock()
	clientID, ok := h.tokens[token]
	h.mu.Unlock()
	if token == "" || !ok {
		metricConnectionsRefused.Add(1)
		http.Error(w, "unknown channel token", http.StatusUnauthorized)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("channel upgrade failed")
		return
	}
	c := &conn{
		ws:       ws,
		clientID: clientID,
		send:     make(chan []byte, h.opts.SendBuffer),
		done:     make(chan struct{}),
	}

	h.lockIdentity(clientID)
	h.mu.Lock()
	old := h.conns[clientID]
	h.conns[clientID] = c
	presence := h.presence
	h.mu.Unlock()
	metricConnectionsActive.Add(1)

	go h.writeLoop(c)
	if old != nil {
		// Same identity, new socket: presence is unchanged.
		log.Info().Str("client_id", clientID).Msg("channel replaced")
		old.close()
	} else if presence != nil {
		err := presence.OnConnected(context.Background(), clientID)
		if errors.Is(err, session.ErrStaleIdentity) {
			// The session went away while this socket waited its turn.
			log.Info().Str("client_id", clientID).Msg("channel closed; session gone")
			c.close()
		} else if err != nil {
			log.Debug().Err(err).Str("client_id", clientID).Msg("connect event failed")
		}
	}
	h.unlockIdentity(clientID)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *conn) {
	defer h.unregister(c)
	c.ws.SetReadLimit(maxInboundBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * h.opts.PingInterval))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * h.opts.PingInterval))
	})
	for {
		// Clients post gameplay over HTTP; inbound frames only keep the
		// socket alive.
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *conn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *Hub) unregister(c *conn) {
	c.close()
	metricConnectionsActive.Add(-1)

	h.lockIdentity(c.clientID)
	defer h.unlockIdentity(c.clientID)
	h.mu.Lock()
	current := h.conns[c.clientID] == c
	if current {
		delete(h.conns, c.clientID)
	}
	presence := h.presence
	h.mu.Unlock()

	if current && presence != nil {
		if err := presence.OnDisconnected(context.Background(), c.clientID); err != nil {
			log.Debug().Err(err).Str("client_id", c.clientID).Msg("disconnect event failed")
		}
	}
}

// Send queues msg for clientID. json.RawMessage is delivered byte for byte;
// anything else is JSON encoded. A full queue drops the message.
func (h *Hub) Send(clientID string, msg any) {
	if clientID == "" {
		metricSendSkipped.Add(1)
		return
	}
	var b []byte
	switch v := msg.(type) {
	case json.RawMessage:
		b = v
	case []byte:
		b = v
	default:
		var err error
		if b, err = json.Marshal(msg); err != nil {
			log.Error().Err(err).Str("client_id", clientID).Msg("encode channel message failed")
			return
		}
	}

	h.mu.Lock()
	c := h.conns[clientID]
	h.mu.Unlock()
	if c == nil {
		metricSendSkipped.Add(1)
		return
	}
	select {
	case c.send <- b:
		metricSendTotal.Add(1)
	case <-c.done:
		metricSendSkipped.Add(1)
	default:
		metricSendDropped.Add(1)
		log.Warn().Str("client_id", clientID).Msg("channel queue full; message dropped")
	}
}

// Close shuts every open socket without raising disconnect events.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = map[string]*conn{}
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}
