// Package message defines what travels over the notification channel: the
// server's control messages and the envelope clients post gameplay content in.
package message

import (
	"encoding/json"
	"strings"
)

// Type tags understood by the server. Any other tag is opaque gameplay content.
const (
	TypeConnected    = "CONNECTED"
	TypeDisconnected = "DISCONNECTED"
	TypeSyncRequest  = "SYNC_REQUEST"
	TypeWaitForSync  = "WAIT_FOR_SYNC"
)

// Control is a server-originated message. Player is only set for presence
// messages.
type Control struct {
	Type   string `json:"type"`
	Player string `json:"player,omitempty"`
}

func Connected(player string) Control {
	return Control{Type: TypeConnected, Player: player}
}

func Disconnected(player string) Control {
	return Control{Type: TypeDisconnected, Player: player}
}

func WaitForSync() Control {
	return Control{Type: TypeWaitForSync}
}

func SyncRequest() Control {
	return Control{Type: TypeSyncRequest}
}

// IsControl reports whether tag names one of the server's control types.
func IsControl(tag string) bool {
	switch NormalizeType(tag) {
	case TypeConnected, TypeDisconnected, TypeSyncRequest, TypeWaitForSync:
		return true
	default:
		return false
	}
}

// NormalizeType upper-cases a tag so lookups ignore client casing.
func NormalizeType(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// Envelope is the body a client posts to relay gameplay or control content.
// Message stays raw so it can be forwarded byte for byte.
type Envelope struct {
	Type    string          `json:"type"`
	User    string          `json:"user"`
	Message json.RawMessage `json:"message"`
}
