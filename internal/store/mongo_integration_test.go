//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMongo(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForLog("Waiting for connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start mongo container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func openMongo(t *testing.T, uri, database string) *MongoStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := OpenMongo(ctx, uri, database)
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMongoStoreRoundTrip(t *testing.T) {
	uri := startMongo(t)
	runStoreContract(t, openMongo(t, uri, "taskboard_contract"))
}

func TestMongoStoreReopenKeepsIndexesAndCounters(t *testing.T) {
	uri := startMongo(t)
	ctx := context.Background()

	first := openMongo(t, uri, "taskboard_reopen")
	if _, err := first.CreateUser(ctx, User{Username: "carol", PasswordHash: "x", Role: "member"}); err != nil {
		t.Fatalf("create carol: %v", err)
	}

	// Index creation is repeated on every open and must not fail.
	second := openMongo(t, uri, "taskboard_reopen")
	if _, err := second.CreateUser(ctx, User{Username: "CAROL", PasswordHash: "x"}); err == nil {
		t.Fatalf("expected the unique username index to survive a reopen")
	}
	dave, err := second.CreateUser(ctx, User{Username: "dave", PasswordHash: "x", Role: "member"})
	if err != nil {
		t.Fatalf("create dave: %v", err)
	}
	// The failed insert above still consumed id 2.
	if dave.ID != 3 {
		t.Fatalf("expected counters to continue across opens, got id %d", dave.ID)
	}
}
