package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"taskboard/api/internal/rbac"
)

func TestConcurrentFirstRegistrationsYieldOneAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := env.svc.Register(ctx, RegisterInput{
				Username: fmt.Sprintf("user%d", i),
				Password: "correct-horse-battery",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	users, err := env.store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != n {
		t.Fatalf("expected %d users, got %d", n, len(users))
	}
	admins := 0
	for _, u := range users {
		if u.Role == string(rbac.RoleAdmin) {
			admins++
		}
	}
	if admins != 1 {
		t.Fatalf("expected exactly one admin, got %d", admins)
	}
}
