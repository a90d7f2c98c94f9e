// Package session holds the two-slot match record and the rules for moving
// its slots between unassigned, assigned, connected and disconnected.
package session

import (
	"strconv"
	"strings"
	"time"
)

// SlotCount is fixed: a session is always a two-player match.
const SlotCount = 2

// Slot is one participant position. An empty Player means unassigned.
type Slot struct {
	Player        string `json:"player,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	Connected     bool   `json:"connected"`
	EverConnected bool   `json:"ever_connected"`
}

func (s Slot) Assigned() bool {
	return s.Player != ""
}

// Session is one match and its connectivity state. Version is bumped by the
// store on every successful save and guards concurrent read-modify-persist.
type Session struct {
	ID        string
	Name      string
	Slots     [SlotCount]Slot
	Version   int64
	CreatedAt time.Time
}

func New(id, name string) *Session {
	return &Session{ID: id, Name: name, CreatedAt: time.Now().UTC()}
}

// ClientIDFor derives the identity a slot is addressed by.
func ClientIDFor(sessionID string, slot int) string {
	return sessionID + "-" + strconv.Itoa(slot)
}

// Peer returns the other slot index.
func Peer(slot int) int {
	return 1 - slot
}

// Join places player in the first open slot, slot 0 before slot 1. A caller
// presenting an identity that already belongs to this session is rejoining
// and nothing changes; the reconnect itself is handled by presence.
func (s *Session) Join(player, existingClientID string) (clientID string, rejoined bool, err error) {
	if existingClientID != "" {
		if _, ok := s.SlotOf(existingClientID); ok {
			return existingClientID, true, nil
		}
	}
	if strings.TrimSpace(player) == "" {
		return "", false, ErrInvalidRequest
	}
	for i := range s.Slots {
		if s.Slots[i].Assigned() {
			continue
		}
		s.Slots[i].Player = player
		s.Slots[i].ClientID = ClientIDFor(s.ID, i)
		return s.Slots[i].ClientID, false, nil
	}
	return "", false, ErrSessionFull
}

// SlotOf finds the slot owning clientID.
func (s *Session) SlotOf(clientID string) (int, bool) {
	if clientID == "" {
		return -1, false
	}
	for i := range s.Slots {
		if s.Slots[i].ClientID == clientID {
			return i, true
		}
	}
	return -1, false
}

// SlotOfPlayer finds the slot a participant name was assigned to. Slot 0 wins
// if both participants picked the same name.
func (s *Session) SlotOfPlayer(player string) (int, bool) {
	if player == "" {
		return -1, false
	}
	for i := range s.Slots {
		if s.Slots[i].Player == player {
			return i, true
		}
	}
	return -1, false
}

func (s *Session) AnyConnected() bool {
	for _, slot := range s.Slots {
		if slot.Connected {
			return true
		}
	}
	return false
}

func (s *Session) Full() bool {
	for _, slot := range s.Slots {
		if !slot.Assigned() {
			return false
		}
	}
	return true
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
