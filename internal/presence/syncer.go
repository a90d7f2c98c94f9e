package presence

import (
	"github.com/rs/zerolog/log"

	"duel-relay/internal/channel"
	"duel-relay/internal/message"
)

// Syncer runs the reconnect handshake. The reconnecting client is told to
// hold still and the live peer is asked for a full snapshot, which then
// travels back as an ordinary gameplay message.
type Syncer struct {
	sender channel.Sender
}

func NewSyncer(sender channel.Sender) *Syncer {
	return &Syncer{sender: sender}
}

// Begin sends WAIT_FOR_SYNC to reconnecting and SYNC_REQUEST to peer.
// There is no timeout: if peer never answers, reconnecting keeps waiting.
func (s *Syncer) Begin(reconnecting, peer string) {
	s.sender.Send(reconnecting, message.WaitForSync())
	s.sender.Send(peer, message.SyncRequest())
	metricSyncHandshakes.Add(1)
	log.Info().
		Str("client_id", reconnecting).
		Str("peer_client_id", peer).
		Msg("sync requested")
}
