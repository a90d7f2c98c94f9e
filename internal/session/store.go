package session

import (
	"context"
	"fmt"
)

// Fields QueryByField can filter on.
const (
	FieldName        = "name"
	FieldSlot0Client = "slot0_client_id"
	FieldSlot1Client = "slot1_client_id"
)

// ClientField names the query field holding slot's client identity.
func ClientField(slot int) string {
	if slot == 0 {
		return FieldSlot0Client
	}
	return FieldSlot1Client
}

// Store persists sessions. Save and Delete compare Version against the stored
// record and fail with ErrConflict when another writer got there first; Save
// never recreates a deleted session.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	QueryByField(ctx context.Context, field, value string) ([]*Session, error)
	List(ctx context.Context) ([]*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, s *Session) error
}

// FindByClientID resolves the session owning clientID by scanning both slot
// identity fields.
func FindByClientID(ctx context.Context, st Store, clientID string) (*Session, int, error) {
	if clientID == "" {
		return nil, -1, ErrStaleIdentity
	}
	for slot := 0; slot < SlotCount; slot++ {
		found, err := st.QueryByField(ctx, ClientField(slot), clientID)
		if err != nil {
			return nil, -1, err
		}
		if len(found) > 0 {
			return found[0], slot, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrStaleIdentity, clientID)
}
