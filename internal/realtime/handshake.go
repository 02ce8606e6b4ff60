package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"taskboard/api/internal/session"
)

// CloseUnauthorized is the close code sent for every rejected handshake.
const CloseUnauthorized = 4401

type Reason string

const (
	ReasonMissingCookie    Reason = "missing_cookie"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonLookupFailed     Reason = "lookup_failed"
	ReasonSessionNotFound  Reason = "session_not_found"
	ReasonNoUser           Reason = "no_user"
)

type Rejection struct {
	Reason Reason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err == nil {
		return fmt.Sprintf("handshake rejected: %s", r.Reason)
	}
	return fmt.Sprintf("handshake rejected: %s: %v", r.Reason, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

type SessionResolver interface {
	Resolve(ctx context.Context, rawCookie string) (int64, error)
}

// Authenticator resolves the session cookie of an upgrade request.
type Authenticator struct {
	CookieName string
	Sessions   SessionResolver
}

// Authenticate returns the user id behind cookieHeader or a *Rejection.
func (a *Authenticator) Authenticate(ctx context.Context, cookieHeader string) (int64, error) {
	raw, ok := parseCookies(cookieHeader)[a.CookieName]
	if !ok || raw == "" {
		return 0, &Rejection{Reason: ReasonMissingCookie}
	}
	userID, err := a.Sessions.Resolve(ctx, raw)
	if err != nil {
		return 0, &Rejection{Reason: reasonFor(err), Err: err}
	}
	return userID, nil
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, session.ErrInvalidCookie):
		return ReasonInvalidSignature
	case errors.Is(err, session.ErrSessionNotFound):
		return ReasonSessionNotFound
	case errors.Is(err, session.ErrNoUser):
		return ReasonNoUser
	default:
		return ReasonLookupFailed
	}
}

// RejectionReason extracts the reason from a handshake error.
func RejectionReason(err error) (Reason, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection.Reason, true
	}
	return "", false
}

// parseCookies splits a raw Cookie header. An empty header gives an empty
// map and the first occurrence of a name wins.
func parseCookies(header string) map[string]string {
	out := make(map[string]string)
	if header == "" {
		return out
	}
	req := http.Request{Header: http.Header{"Cookie": {header}}}
	for _, c := range req.Cookies() {
		if _, seen := out[c.Name]; !seen {
			out[c.Name] = c.Value
		}
	}
	return out
}
