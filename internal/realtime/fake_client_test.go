package realtime

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClient struct {
	id     string
	userID int64
	refuse bool

	mu   sync.Mutex
	msgs [][]byte
}

func newFakeClient(userID int64, n int) *fakeClient {
	return &fakeClient{id: fmt.Sprintf("u%d-c%d", userID, n), userID: userID}
}

func (c *fakeClient) ID() string    { return c.id }
func (c *fakeClient) UserID() int64 { return c.userID }

func (c *fakeClient) Send(msg []byte) bool {
	if c.refuse {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return true
}

func (c *fakeClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
