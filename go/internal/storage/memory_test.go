package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/models"
)

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	if _, err := store.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty store = %v, want ErrNotFound", err)
	}

	first := &models.GameSession{ID: id, Revision: 1, LastWriter: "device-a"}
	if err := store.Write(ctx, id, first, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A create against an existing session is a conflict.
	if err := store.Write(ctx, id, first, 0); err == nil {
		t.Fatal("second create should conflict")
	}

	second := &models.GameSession{ID: id, Revision: 2, LastWriter: "device-a"}
	if err := store.Write(ctx, id, second, 1); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// A stale base revision loses and reports the winner.
	stale := &models.GameSession{ID: id, Revision: 2, LastWriter: "device-b"}
	err := store.Write(ctx, id, stale, 1)
	remote, ok := AsConflict(err)
	if !ok {
		t.Fatalf("stale write error = %v, want *ConflictError", err)
	}
	if remote.Revision != 2 || remote.LastWriter != "device-a" {
		t.Errorf("conflict remote = %+v, want the winning snapshot", remote)
	}
}

func TestMemoryStoreSubscribe(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	var seen []int64
	unsub, err := store.Subscribe(ctx, id, func(s *models.GameSession) {
		seen = append(seen, s.Revision)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := store.Write(ctx, id, &models.GameSession{ID: id, Revision: 1}, 0); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != 1 {
		t.Fatalf("seen = %v, want the written revision", seen)
	}

	unsub()
	if err := store.Write(ctx, id, &models.GameSession{ID: id, Revision: 2}, 1); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(seen) != 1 {
		t.Error("unsubscribed callback must not fire")
	}
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	injected := errors.New("boom")
	store.FailWith(injected)
	if err := store.Write(ctx, id, &models.GameSession{ID: id, Revision: 1}, 0); !errors.Is(err, injected) {
		t.Fatalf("Write = %v, want the injected error", err)
	}

	store.FailWith(nil)
	if err := store.Write(ctx, id, &models.GameSession{ID: id, Revision: 1}, 0); err != nil {
		t.Fatalf("Write after reset failed: %v", err)
	}
}
