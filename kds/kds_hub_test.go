package kds

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-table-cart/events"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, raw := range c.msgs {
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg.Event)
	}
	return out
}

func TestHubFiltersChefEvents(t *testing.T) {
	hub := NewHub()
	chef, staff := &fakeConn{}, &fakeConn{}
	hub.RegisterClient(chef, "chef")
	hub.RegisterClient(staff, "staff")

	ctx := context.Background()
	for _, typ := range []string{events.OrderCreated, events.OrderPlaced, events.ApprovalRequested, events.OrderItemMarked, events.OrderClosed} {
		require.NoError(t, hub.Publish(ctx, events.Event{Type: typ, TableID: 1}))
	}

	assert.Equal(t, []string{events.OrderPlaced, events.OrderItemMarked}, chef.events(t))
	assert.Len(t, staff.events(t), 5)
}

func TestHubDropsBrokenClients(t *testing.T) {
	hub := NewHub()
	broken := &fakeConn{fail: true}
	hub.RegisterClient(broken, "admin")
	hub.RegisterClient(&fakeConn{}, "admin")
	require.Equal(t, 2, hub.ClientCount())

	require.NoError(t, hub.Publish(context.Background(), events.Event{Type: events.OrderPlaced}))
	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, broken.closed)
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{}
	hub.RegisterClient(conn, "staff")
	hub.UnregisterClient(conn)
	assert.Zero(t, hub.ClientCount())
	assert.True(t, conn.closed)
}
