package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Handler upgrades /ws requests, authenticates them from the session cookie
// and keeps the connection registered until either side closes it.
type Handler struct {
	upgrader websocket.Upgrader
	auth     *Authenticator
	registry *Registry
	metrics  *Metrics
	opts     Options
	logger   *slog.Logger
	closing  atomic.Bool
}

func NewHandler(auth *Authenticator, registry *Registry, metrics *Metrics, opts Options, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		auth:     auth,
		registry: registry,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[origin] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("realtime.upgrade", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn := newConn(ws, h.opts, h.metrics, h.logger)
	go conn.readLoop()

	userID, err := h.auth.Authenticate(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		reason, _ := RejectionReason(err)
		h.metrics.rejected(reason)
		h.logger.Warn("realtime.handshake.rejected", "reason", reason, "remote", r.RemoteAddr, "error", err)
		conn.closeWith(CloseUnauthorized, "unauthorized")
		return
	}
	if conn.Closed() {
		h.logger.Debug("realtime.handshake.abandoned", "user_id", userID)
		return
	}

	conn.bind(userID)
	// The ack is queued before registration so no broadcast can overtake it.
	if ack, err := json.Marshal(Connected(userID)); err == nil {
		conn.Send(ack)
	}
	h.registry.Register(conn)
	h.metrics.connOpened()
	defer func() {
		h.registry.Unregister(conn)
		h.metrics.connClosed()
		conn.shutdown()
		h.logger.Info("realtime.disconnected", "conn", conn.ID(), "user_id", userID)
	}()
	if h.closing.Load() {
		conn.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	h.logger.Info("realtime.connected", "conn", conn.ID(), "user_id", userID)
	conn.writeLoop()
}

// Shutdown sends a going-away close frame to every registered connection and
// makes connections that finish their handshake afterwards close the same
// way. It returns the number of connections closed.
func (h *Handler) Shutdown() int {
	h.closing.Store(true)
	closed := 0
	for _, client := range h.registry.All() {
		if conn, ok := client.(*Conn); ok {
			conn.closeWith(websocket.CloseGoingAway, "server shutting down")
			closed++
		}
	}
	return closed
}
