package store_test

import (
	"context"
	"errors"
	"testing"

	"duel-relay/internal/session"
	"duel-relay/internal/store"
	"duel-relay/internal/testutil"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, store.NewMemory())
}

func TestPostgresStoreContract(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	runStoreContract(t, st)
}

func runStoreContract(t *testing.T, st session.Store) {
	t.Helper()
	ctx := context.Background()

	s := session.New(store.NewID(), "Duel of Fates")
	if _, _, err := s.Join("Alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := st.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Version != 1 {
		t.Fatalf("version after create = %d, want 1", s.Version)
	}

	got, err := st.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Duel of Fates" || got.Slots[0].Player != "Alice" || got.Slots[0].ClientID != s.ID+"-0" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Slots[1].Assigned() {
		t.Fatalf("slot 1 should be unassigned: %+v", got.Slots[1])
	}

	byClient, err := st.QueryByField(ctx, session.FieldSlot0Client, s.ID+"-0")
	if err != nil || len(byClient) != 1 {
		t.Fatalf("query slot0 client: n=%d err=%v", len(byClient), err)
	}
	none, err := st.QueryByField(ctx, session.FieldSlot1Client, s.ID+"-0")
	if err != nil || len(none) != 0 {
		t.Fatalf("query slot1 client: n=%d err=%v", len(none), err)
	}
	if _, err := st.QueryByField(ctx, "player1", "x"); !errors.Is(err, session.ErrInvalidRequest) {
		t.Fatalf("unknown field: expected ErrInvalidRequest, got %v", err)
	}

	// Two writers read the same version; the second save must lose.
	a, _ := st.Get(ctx, s.ID)
	b, _ := st.Get(ctx, s.ID)
	a.MarkConnected(0)
	if err := st.Save(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("version after save = %d, want 2", a.Version)
	}
	if _, _, err := b.Join("Bob", ""); err != nil {
		t.Fatalf("join b: %v", err)
	}
	if err := st.Save(ctx, b); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("stale save: expected ErrConflict, got %v", err)
	}
	if err := st.Delete(ctx, b); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("stale delete: expected ErrConflict, got %v", err)
	}

	list, err := st.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: n=%d err=%v", len(list), err)
	}

	fresh, _ := st.Get(ctx, s.ID)
	if err := st.Delete(ctx, fresh); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, s.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("get after delete: expected ErrNotFound, got %v", err)
	}
	if err := st.Save(ctx, fresh); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("save after delete must not resurrect: got %v", err)
	}
	if err := st.Delete(ctx, fresh); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	s := session.New("S1", "g")
	if err := st.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := st.Get(ctx, "S1")
	got.Slots[0].Player = "mutated"
	again, _ := st.Get(ctx, "S1")
	if again.Slots[0].Player != "" {
		t.Fatal("store leaked its internal record")
	}
}

func TestNewIDIsUniqueAndOrdered(t *testing.T) {
	prev := store.NewID()
	for i := 0; i < 100; i++ {
		next := store.NewID()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}
