package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreExpiresSessions(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Save(ctx, "sid", Data{UserID: 5}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := store.Get(ctx, "sid")
	if err != nil || data == nil || data.UserID != 5 {
		t.Fatalf("expected user 5, got %+v, %v", data, err)
	}

	now = now.Add(time.Minute)
	data, err = store.Get(ctx, "sid")
	if err != nil || data != nil {
		t.Fatalf("expected session to expire, got %+v, %v", data, err)
	}
}

func TestMemoryStoreDestroy(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	_ = store.Save(ctx, "sid", Data{UserID: 1})
	_ = store.Destroy(ctx, "sid")
	if data, _ := store.Get(ctx, "sid"); data != nil {
		t.Fatalf("expected nil after destroy, got %+v", data)
	}
}
