// Package session stores server-side login sessions and resolves signed
// session cookies back to user ids.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Data is the payload kept for each session id. A zero UserID means the
// session exists but carries no authenticated user.
type Data struct {
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a session backend. Get returns nil, nil for unknown or expired ids.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Data, error)
	Save(ctx context.Context, sessionID string, data Data) error
	Destroy(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}

func NewID() string {
	return uuid.NewString()
}
