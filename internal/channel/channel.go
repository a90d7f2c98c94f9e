// Package channel is the server-to-client push path. Clients are addressed by
// their slot identity; delivery is best effort with no acknowledgement.
package channel

import "context"

// Sender pushes one message to a client. Empty or unknown identities are
// skipped silently.
type Sender interface {
	Send(clientID string, msg any)
}

// Presence receives the connect and disconnect events a channel observes.
type Presence interface {
	OnConnected(ctx context.Context, clientID string) error
	OnDisconnected(ctx context.Context, clientID string) error
}
