package realtime

import "sync"

// Client is one registered connection. Identity is the interface value, so
// two tabs of the same user are distinct clients.
type Client interface {
	ID() string
	UserID() int64
	// Send queues msg for delivery and reports whether it was accepted.
	Send(msg []byte) bool
}

type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]map[Client]struct{}
	count  int
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[int64]map[Client]struct{})}
}

func (r *Registry) Register(c Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	userID := c.UserID()
	clients, ok := r.byUser[userID]
	if !ok {
		clients = make(map[Client]struct{})
		r.byUser[userID] = clients
	}
	if _, exists := clients[c]; exists {
		return
	}
	clients[c] = struct{}{}
	r.count++
}

// Unregister removes exactly c. Unknown clients are ignored.
func (r *Registry) Unregister(c Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	userID := c.UserID()
	clients, ok := r.byUser[userID]
	if !ok {
		return
	}
	if _, exists := clients[c]; !exists {
		return
	}
	delete(clients, c)
	r.count--
	if len(clients) == 0 {
		delete(r.byUser, userID)
	}
}

func (r *Registry) ConnectionsFor(userID int64) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := r.byUser[userID]
	out := make([]Client, 0, len(clients))
	for c := range clients {
		out = append(out, c)
	}
	return out
}

func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, r.count)
	for _, clients := range r.byUser {
		for c := range clients {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *Registry) CountFor(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}
