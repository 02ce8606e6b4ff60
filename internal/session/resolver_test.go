package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard/api/internal/auth"
)

type failingStore struct {
	MemoryStore
	err error
}

func (s *failingStore) Get(context.Context, string) (*Data, error) { return nil, s.err }

type slowStore struct {
	MemoryStore
}

func (s *slowStore) Get(ctx context.Context, _ string) (*Data, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolverStartAndResolve(t *testing.T) {
	resolver := NewResolver(NewMemoryStore(time.Hour), []byte("secret"), 0)
	ctx := context.Background()

	cookie, err := resolver.Start(ctx, 17)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	userID, err := resolver.Resolve(ctx, cookie)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if userID != 17 {
		t.Fatalf("expected user 17, got %d", userID)
	}

	if err := resolver.End(ctx, cookie); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if _, err := resolver.Resolve(ctx, cookie); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after End, got %v", err)
	}
}

func TestResolverRejections(t *testing.T) {
	secret := []byte("secret")
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	_ = store.Save(ctx, "anonymous", Data{})

	resolver := NewResolver(store, secret, 0)

	if _, err := resolver.Resolve(ctx, "garbage"); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expected ErrInvalidCookie, got %v", err)
	}
	if _, err := resolver.Resolve(ctx, auth.SignSessionID([]byte("other"), "anonymous")); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expected ErrInvalidCookie for foreign secret, got %v", err)
	}
	if _, err := resolver.Resolve(ctx, auth.SignSessionID(secret, "unknown")); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := resolver.Resolve(ctx, auth.SignSessionID(secret, "anonymous")); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}

	broken := NewResolver(&failingStore{err: errors.New("redis down")}, secret, 0)
	if _, err := broken.Resolve(ctx, auth.SignSessionID(secret, "x")); !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestResolverBoundsLookup(t *testing.T) {
	secret := []byte("secret")
	resolver := NewResolver(&slowStore{}, secret, 20*time.Millisecond)

	start := time.Now()
	_, err := resolver.Resolve(context.Background(), auth.SignSessionID(secret, "x"))
	if !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed on timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected lookup to be bounded, took %v", elapsed)
	}
}
