package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "tasks/1/a.txt", strings.NewReader("hello"), 5, "text/plain"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rc, err := s.Get(ctx, "tasks/1/a.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", data)
	}

	if err := s.Delete(ctx, "tasks/1/a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "tasks/1/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
