package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"duel-relay/internal/config"
	"duel-relay/internal/message"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Move is the bot's gameplay payload: a shared counter passed back and forth.
type Move struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

type Joined struct {
	SessionID    string `json:"session_id"`
	Player       string `json:"player"`
	ClientID     string `json:"client_id"`
	ChannelToken string `json:"channel_token"`
}

type bot struct {
	cfg     config.BotConfig
	http    *http.Client
	joined  Joined
	count   int64
	waiting bool
	rnd     *rand.Rand
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	b := &bot{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := b.join(); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	log.Info().Str("session_id", b.joined.SessionID).Str("client_id", b.joined.ClientID).Msg("joined")

	conn, _, err := websocket.DefaultDialer.Dial(channelURL(cfg.BaseURL, b.joined.ChannelToken), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("channel dial failed")
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("channel closed")
			return
		}
		if err := b.handle(data); err != nil {
			log.Warn().Err(err).Msg("handle message failed")
		}
	}
}

func (b *bot) join() error {
	path := "/api/sessions"
	body := map[string]string{"name": b.cfg.GameName, "player": b.cfg.Player}
	if b.cfg.SessionID != "" {
		path = "/api/sessions/" + url.PathEscape(b.cfg.SessionID) + "/join"
		body = map[string]string{"player": b.cfg.Player}
	}
	resp, err := b.post(path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("join status %d: %s", resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(&b.joined)
}

func (b *bot) handle(data []byte) error {
	var ctl message.Control
	if err := json.Unmarshal(data, &ctl); err != nil {
		return err
	}
	if message.IsControl(ctl.Type) {
		return b.control(ctl)
	}

	var mv Move
	if err := json.Unmarshal(data, &mv); err != nil {
		return err
	}
	b.count = mv.Count
	switch mv.Kind {
	case "snapshot":
		b.waiting = false
		log.Info().Int64("count", b.count).Msg("state restored")
		return nil
	case "move":
		if b.waiting {
			return nil
		}
		time.Sleep(time.Duration(200+b.rnd.Intn(800)) * time.Millisecond)
		return b.move(b.count + 1)
	default:
		return fmt.Errorf("unknown payload kind %q", mv.Kind)
	}
}

func (b *bot) control(ctl message.Control) error {
	switch ctl.Type {
	case message.TypeConnected:
		log.Info().Str("peer", ctl.Player).Msg("peer connected")
		// The creator opens the game once somebody shows up.
		if strings.HasSuffix(b.joined.ClientID, "-0") && b.count == 0 {
			return b.move(1)
		}
		return nil
	case message.TypeDisconnected:
		log.Info().Str("peer", ctl.Player).Msg("peer disconnected")
		return nil
	case message.TypeWaitForSync:
		b.waiting = true
		log.Info().Msg("waiting for snapshot")
		return nil
	case message.TypeSyncRequest:
		return b.send("SNAPSHOT", Move{Kind: "snapshot", Count: b.count})
	}
	return nil
}

func (b *bot) move(count int64) error {
	b.count = count
	return b.send("MOVE", Move{Kind: "move", Count: count})
}

func (b *bot) send(msgType string, payload Move) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := message.Envelope{Type: msgType, User: b.joined.Player, Message: raw}
	resp, err := b.post("/api/sessions/"+url.PathEscape(b.joined.SessionID)+"/messages", env)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("send %s: status %d", msgType, resp.StatusCode)
	}
	log.Debug().Str("type", msgType).Int64("count", payload.Count).Msg("sent")
	return nil
}

func (b *bot) post(path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(b.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.http.Do(req)
}

func channelURL(base, token string) string {
	u := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/channel?token=" + url.QueryEscape(token)
}
