package realtime

import (
	"encoding/json"
	"log/slog"
)

const (
	modeBroadcast = "broadcast"
	modeDirect    = "direct"
)

// Dispatcher delivers events to registered clients. Delivery is best effort:
// a client that refuses a message is skipped and the rest still receive it.
type Dispatcher struct {
	registry *Registry
	metrics  *Metrics
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, metrics: metrics, logger: logger}
}

// Broadcast sends event to every client except those of excludeUserID.
// Zero means no exclusion. It returns the number of clients that accepted it.
func (d *Dispatcher) Broadcast(event Event, excludeUserID int64) int {
	msg, ok := d.encode(event)
	if !ok {
		return 0
	}
	delivered := 0
	for _, c := range d.registry.All() {
		if excludeUserID != 0 && c.UserID() == excludeUserID {
			continue
		}
		if d.deliver(c, msg, event.Type) {
			delivered++
		}
	}
	d.metrics.dispatched(event.Type, modeBroadcast)
	return delivered
}

// SendToUser sends event to every open connection of userID.
func (d *Dispatcher) SendToUser(userID int64, event Event) int {
	clients := d.registry.ConnectionsFor(userID)
	if len(clients) == 0 {
		return 0
	}
	msg, ok := d.encode(event)
	if !ok {
		return 0
	}
	delivered := 0
	for _, c := range clients {
		if d.deliver(c, msg, event.Type) {
			delivered++
		}
	}
	d.metrics.dispatched(event.Type, modeDirect)
	return delivered
}

func (d *Dispatcher) encode(event Event) ([]byte, bool) {
	msg, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("realtime.encode", "type", event.Type, "error", err)
		return nil, false
	}
	return msg, true
}

func (d *Dispatcher) deliver(c Client, msg []byte, kind Kind) bool {
	if c.Send(msg) {
		return true
	}
	d.metrics.deliveryDropped()
	d.logger.Warn("realtime.delivery.dropped", "type", kind, "conn", c.ID(), "user_id", c.UserID())
	return false
}
