package realtime

import (
	"context"
	"errors"
	"testing"
	"time"


	"taskboard/api/internal/auth"
	"taskboard/api/internal/session"
)

const testCookieName = "taskboard.sid"

var testSecret = []byte("test-secret")

type brokenSessions struct{}

func (brokenSessions) Get(context.Context, string) (*session.Data, error) {
	return nil, errors.New("redis unavailable")
}
func (brokenSessions) Save(context.Context, string, session.Data) error { return nil }
func (brokenSessions) Destroy(context.Context, string) error           { return nil }
func (brokenSessions) Ping(context.Context) error                      { return nil }
func (brokenSessions) Close() error                                    { return nil }

func newTestAuthenticator(t *testing.T) (*Authenticator, *session.Resolver) {
	t.Helper()
	resolver := session.NewResolver(session.NewMemoryStore(time.Hour), testSecret, 0)
	return &Authenticator{CookieName: testCookieName, Sessions: resolver}, resolver
}

func TestAuthenticateResolvesUser(t *testing.T) {
	a, resolver := newTestAuthenticator(t)
	value, err := resolver.Start(context.Background(), 42)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	userID, err := a.Authenticate(context.Background(), "theme=dark; "+testCookieName+"="+value)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	a, resolver := newTestAuthenticator(t)
	ctx := context.Background()
	if err := resolver.Store.Save(ctx, "anon", session.Data{}); err != nil {
		t.Fatalf("save session: %v", err)
	}

	cases := []struct {
		name   string
		header string
		auth   *Authenticator
		reason Reason
	}{
		{"empty header", "", a, ReasonMissingCookie},
		{"other cookies only", "theme=dark; lang=en", a, ReasonMissingCookie},
		{"unsigned value", testCookieName + "=plain", a, ReasonInvalidSignature},
		{"foreign secret", testCookieName + "=" + auth.SignSessionID([]byte("nope"), "anon"), a, ReasonInvalidSignature},
		{"unknown session", testCookieName + "=" + auth.SignSessionID(testSecret, "gone"), a, ReasonSessionNotFound},
		{"session without user", testCookieName + "=" + auth.SignSessionID(testSecret, "anon"), a, ReasonNoUser},
		{
			"store failure",
			testCookieName + "=" + auth.SignSessionID(testSecret, "x"),
			&Authenticator{CookieName: testCookieName, Sessions: session.NewResolver(brokenSessions{}, testSecret, 0)},
			ReasonLookupFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			userID, err := tc.auth.Authenticate(ctx, tc.header)
			if userID != 0 {
				t.Fatalf("expected no user, got %d", userID)
			}
			var rejection *Rejection
			if !errors.As(err, &rejection) {
				t.Fatalf("expected *Rejection, got %v", err)
			}
			if rejection.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, rejection.Reason)
			}
		})
	}
}

func TestParseCookies(t *testing.T) {
	if got := parseCookies(""); len(got) != 0 {
		t.Fatalf("expected no cookies, got %v", got)
	}
	cookies := parseCookies("a=1; b=2; a=3")
	if len(cookies) != 2 || cookies["a"] != "1" || cookies["b"] != "2" {
		t.Fatalf("expected first value of each cookie, got %v", cookies)
	}
}
