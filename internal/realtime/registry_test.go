package realtime

import (
	"sync"
	"testing"
)

func sameClients(got, want []Client) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[Client]int, len(want))
	for _, c := range want {
		seen[c]++
	}
	for _, c := range got {
		if seen[c] == 0 {
			return false
		}
		seen[c]--
	}
	return true
}

func TestRegistryTracksMultipleTabsPerUser(t *testing.T) {
	r := NewRegistry()
	tabA := newFakeClient(1, 1)
	tabB := newFakeClient(1, 2)
	other := newFakeClient(2, 1)

	r.Register(tabA)
	r.Register(tabB)
	r.Register(other)
	r.Register(tabA)

	if got := r.Count(); got != 3 {
		t.Fatalf("expected 3 connections, got %d", got)
	}
	if got := r.ConnectionsFor(1); !sameClients(got, []Client{tabA, tabB}) {
		t.Fatalf("expected both tabs of user 1, got %v", got)
	}
	if got := r.All(); !sameClients(got, []Client{tabA, tabB, other}) {
		t.Fatalf("expected all three connections, got %v", got)
	}

	r.Unregister(tabA)
	if got := r.ConnectionsFor(1); !sameClients(got, []Client{tabB}) {
		t.Fatalf("expected closing one tab to keep the other, got %v", got)
	}
	if got := r.Count(); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
}

func TestRegistryUnregisterIsTotal(t *testing.T) {
	r := NewRegistry()
	ghost := newFakeClient(9, 1)

	r.Unregister(ghost)
	r.Unregister(nil)
	r.Register(nil)

	if got := r.Count(); got != 0 {
		t.Fatalf("expected empty registry, got %d", got)
	}
	if got := r.ConnectionsFor(9); len(got) != 0 {
		t.Fatalf("expected no connections for user 9, got %v", got)
	}
	if got := r.All(); len(got) != 0 {
		t.Fatalf("expected no connections, got %v", got)
	}

	r.Register(ghost)
	r.Unregister(ghost)
	r.Unregister(ghost)
	if got := r.CountFor(9); got != 0 {
		t.Fatalf("expected 0 connections for user 9, got %d", got)
	}
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := newFakeClient(int64(n%5), n)
			r.Register(c)
			_ = r.All()
			r.Unregister(c)
		}(i)
	}
	wg.Wait()
	if got := r.Count(); got != 0 {
		t.Fatalf("expected empty registry, got %d", got)
	}
}
