package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Options struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
	InboundRate     float64
	InboundBurst    int
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 * 1024
	}
	if o.InboundRate <= 0 {
		o.InboundRate = 10
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = 20
	}
	return o
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Conn wraps one upgraded socket. Outbound messages go through a bounded
// buffer drained by writeLoop; a full buffer drops the message.
type Conn struct {
	id      string
	userID  int64
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	opts    Options
	limiter *rate.Limiter
	metrics *Metrics
	logger  *slog.Logger
}

func newConn(ws *websocket.Conn, opts Options, metrics *Metrics, logger *slog.Logger) *Conn {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.InboundRate), opts.InboundBurst),
		metrics: metrics,
		logger:  logger.With("conn", id),
	}
}

func (c *Conn) ID() string { return c.id }

// UserID is fixed by bind before the connection is registered.
func (c *Conn) UserID() int64 { return c.userID }

func (c *Conn) bind(userID int64) {
	c.userID = userID
}

func (c *Conn) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// closeWith sends a close frame with code before tearing the socket down.
func (c *Conn) closeWith(code int, text string) {
	deadline := time.Now().Add(c.opts.WriteWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
	c.shutdown()
}

// readLoop runs from the moment of upgrade so a disconnect during the
// handshake lookup is observed.
func (c *Conn) readLoop() {
	defer c.shutdown()
	c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug("realtime.read", "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.metrics.inboundDropped("rate_limited")
			continue
		}
		c.handleInbound(data)
	}
}

// handleInbound validates a client frame. No client message type has a
// server-side effect yet.
func (c *Conn) handleInbound(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		c.metrics.inboundDropped("malformed")
		c.logger.Warn("realtime.inbound.malformed", "bytes", len(data), "error", err)
		return
	}
	c.logger.Debug("realtime.inbound", "type", msg.Type)
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("realtime.write", "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
