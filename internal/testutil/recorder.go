package testutil

import (
	"encoding/json"
	"sync"
)

// Sent is one message captured by Recorder.
type Sent struct {
	To   string
	Type string
	Body []byte
}

// Recorder is an in-memory notification sender. It captures every send with
// a non-empty recipient, mirroring the real channel's skip rule.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(clientID string, msg any) {
	if clientID == "" {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return
	}
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(body, &head)
	r.mu.Lock()
	r.sent = append(r.sent, Sent{To: clientID, Type: head.Type, Body: body})
	r.mu.Unlock()
}

func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// To returns the messages delivered to clientID in send order.
func (r *Recorder) To(clientID string) []Sent {
	out := []Sent{}
	for _, s := range r.All() {
		if s.To == clientID {
			out = append(out, s)
		}
	}
	return out
}

// Count returns how many messages of type msgType clientID received.
func (r *Recorder) Count(clientID, msgType string) int {
	n := 0
	for _, s := range r.To(clientID) {
		if s.Type == msgType {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}
