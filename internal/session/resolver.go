package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/api/internal/auth"
)

var (
	ErrInvalidCookie   = errors.New("invalid session cookie")
	ErrLookupFailed    = errors.New("session lookup failed")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoUser          = errors.New("session has no user")
)

const defaultLookupTimeout = 3 * time.Second

// Resolver maps signed cookie values to user ids. The HTTP middleware and
// the socket handshake share one instance.
type Resolver struct {
	Store         Store
	Secret        []byte
	LookupTimeout time.Duration
}

func NewResolver(store Store, secret []byte, lookupTimeout time.Duration) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	return &Resolver{Store: store, Secret: secret, LookupTimeout: lookupTimeout}
}

// Resolve verifies rawCookie and loads its session. Errors wrap exactly one
// of ErrInvalidCookie, ErrLookupFailed, ErrSessionNotFound or ErrNoUser.
func (r *Resolver) Resolve(ctx context.Context, rawCookie string) (int64, error) {
	sessionID, err := auth.UnsignSessionID(r.Secret, rawCookie)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}

	timeout := r.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := r.Store.Get(lookupCtx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if data == nil {
		return 0, ErrSessionNotFound
	}
	if data.UserID == 0 {
		return 0, ErrNoUser
	}
	return data.UserID, nil
}

// Start creates a session for userID and returns the signed cookie value.
func (r *Resolver) Start(ctx context.Context, userID int64) (string, error) {
	sessionID := NewID()
	if err := r.Store.Save(ctx, sessionID, Data{UserID: userID, CreatedAt: time.Now().UTC()}); err != nil {
		return "", err
	}
	return auth.SignSessionID(r.Secret, sessionID), nil
}

// End destroys the session behind rawCookie. Invalid cookies are ignored.
func (r *Resolver) End(ctx context.Context, rawCookie string) error {
	sessionID, err := auth.UnsignSessionID(r.Secret, rawCookie)
	if err != nil {
		return nil
	}
	return r.Store.Destroy(ctx, sessionID)
}
