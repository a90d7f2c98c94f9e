package session

// ConnectResult describes what a connect event changed on a slot.
type ConnectResult struct {
	Slot int
	// Duplicate is set when the slot was already connected; nothing changed.
	Duplicate bool
	// NeedsSync is set for a live reconnect: the slot had been connected
	// before and its peer is connected right now.
	NeedsSync bool
}

// MarkConnected applies a connect event to slot.
func (s *Session) MarkConnected(slot int) ConnectResult {
	res := ConnectResult{Slot: slot}
	cur := &s.Slots[slot]
	if cur.Connected {
		res.Duplicate = true
		return res
	}
	cur.Connected = true
	res.NeedsSync = cur.EverConnected && s.Slots[Peer(slot)].Connected
	cur.EverConnected = true
	return res
}

// MarkDisconnected applies a disconnect event to slot and reports whether the
// slot was connected beforehand.
func (s *Session) MarkDisconnected(slot int) bool {
	cur := &s.Slots[slot]
	if !cur.Connected {
		return false
	}
	cur.Connected = false
	return true
}
