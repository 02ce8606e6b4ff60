package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type handlerFixture struct {
	server   *httptest.Server
	handler  *Handler
	registry *Registry
	metrics  *Metrics
	cookie   string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	a, resolver := newTestAuthenticator(t)
	value, err := resolver.Start(context.Background(), 42)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	registry := NewRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(a, registry, metrics, Options{}, []string{"*"}, logger)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &handlerFixture{
		server:   server,
		handler:  handler,
		registry: registry,
		metrics:  metrics,
		cookie:   testCookieName + "=" + value,
	}
}

func (f *handlerFixture) dial(t *testing.T, cookie string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return e
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) {
			t.Fatalf("expected close error, got %v", err)
		}
		if closeErr.Code != code {
			t.Fatalf("expected close code %d, got %d", code, closeErr.Code)
		}
		return
	}
}

func TestHandlerRegistersAndAcknowledges(t *testing.T) {
	f := newHandlerFixture(t)
	conn := f.dial(t, f.cookie)

	ack := readEnvelope(t, conn)
	var payload struct {
		UserID int64 `json:"userId"`
	}
	_ = json.Unmarshal(ack.Payload, &payload)
	if ack.Type != "connected" || payload.UserID != 42 {
		t.Fatalf("expected connected for user 42, got %s %s", ack.Type, ack.Payload)
	}

	if !waitFor(t, time.Second, func() bool { return f.registry.CountFor(42) == 1 }) {
		t.Fatalf("expected one registered connection for user 42, got %d", f.registry.CountFor(42))
	}
	if got := testutil.ToFloat64(f.metrics.Connections); got != 1 {
		t.Fatalf("expected connection gauge 1, got %v", got)
	}

	d := NewDispatcher(f.registry, nil, nil)
	if delivered := d.SendToUser(42, TaskDeleted(3)); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	event := readEnvelope(t, conn)
	if event.Type != "task_update" || string(event.Payload) != `{"action":"deleted","taskId":3}` {
		t.Fatalf("expected task_update deleted 3, got %s %s", event.Type, event.Payload)
	}

	// Malformed frames are dropped without closing the socket.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	d.SendToUser(42, TaskDeleted(4))
	if event := readEnvelope(t, conn); event.Type != "task_update" {
		t.Fatalf("expected the socket to stay open, got %s", event.Type)
	}

	_ = conn.Close()
	if !waitFor(t, 2*time.Second, func() bool { return f.registry.Count() == 0 }) {
		t.Fatalf("expected the connection to be unregistered, got %d", f.registry.Count())
	}
}

func TestHandlerAckPrecedesConcurrentBroadcasts(t *testing.T) {
	f := newHandlerFixture(t)
	d := NewDispatcher(f.registry, nil, nil)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				d.Broadcast(TaskDeleted(1), 0)
				runtime.Gosched()
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	for i := 0; i < 20; i++ {
		conn := f.dial(t, f.cookie)
		if first := readEnvelope(t, conn); first.Type != "connected" {
			t.Fatalf("connection %d: expected connected first, got %s", i, first.Type)
		}
		_ = conn.Close()
	}
}

func TestHandlerShutdownClosesConnectionsGoingAway(t *testing.T) {
	f := newHandlerFixture(t)
	conn := f.dial(t, f.cookie)
	if ack := readEnvelope(t, conn); ack.Type != "connected" {
		t.Fatalf("expected connected, got %s", ack.Type)
	}
	if !waitFor(t, time.Second, func() bool { return f.registry.Count() == 1 }) {
		t.Fatalf("expected one registered connection, got %d", f.registry.Count())
	}

	if closed := f.handler.Shutdown(); closed != 1 {
		t.Fatalf("expected 1 closed connection, got %d", closed)
	}
	expectClose(t, conn, websocket.CloseGoingAway)
	if !waitFor(t, 2*time.Second, func() bool { return f.registry.Count() == 0 }) {
		t.Fatalf("expected the registry to empty, got %d", f.registry.Count())
	}

	late := f.dial(t, f.cookie)
	expectClose(t, late, websocket.CloseGoingAway)
}

func TestHandlerRejectsMissingCookie(t *testing.T) {
	f := newHandlerFixture(t)
	conn := f.dial(t, "")

	expectClose(t, conn, CloseUnauthorized)
	if got := f.registry.Count(); got != 0 {
		t.Fatalf("expected no registration, got %d", got)
	}
	if got := testutil.ToFloat64(f.metrics.HandshakeRejections.WithLabelValues(string(ReasonMissingCookie))); got != 1 {
		t.Fatalf("expected 1 missing_cookie rejection, got %v", got)
	}
}

func TestHandlerRejectsTamperedCookie(t *testing.T) {
	f := newHandlerFixture(t)
	conn := f.dial(t, testCookieName+"=s%3Aforged.sig")

	expectClose(t, conn, CloseUnauthorized)
	if got := f.registry.Count(); got != 0 {
		t.Fatalf("expected no registration, got %d", got)
	}
}
