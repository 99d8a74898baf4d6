package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderProcessed, true},
		{OrderPending, OrderClosed, true},
		{OrderProcessed, OrderClosed, true},
		{OrderProcessed, OrderPending, false},
		{OrderClosed, OrderPending, false},
		{OrderClosed, OrderProcessed, false},
		{OrderPending, OrderPending, false},
		{OrderPending, "cancelled", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRecalculate(t *testing.T) {
	order := TableOrder{OrderItems: []TableOrderItem{
		{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("5.00"), CustomerToken: "a"},
		{ProductID: 2, Quantity: 3, Price: decimal.RequireFromString("2.50"), CustomerToken: "b"},
		{ProductID: 3, Quantity: 1, Price: decimal.RequireFromString("0.333"), CustomerToken: "b"},
	}}
	order.Recalculate()

	assert.Equal(t, "17.83", order.Subtotal.StringFixed(2))
	assert.True(t, order.Total.Equal(order.Subtotal))
	assert.Equal(t, 6, order.ItemCount())
	assert.Len(t, order.ItemsFor("b"), 2)
	assert.Empty(t, order.ItemsFor("c"))
}

func TestParticipants(t *testing.T) {
	var order TableOrder
	assert.False(t, order.HasParticipant("a"))
	order.AddParticipant("a")
	order.AddParticipant("b")
	order.AddParticipant("a")
	assert.Equal(t, []string{"a", "b"}, []string(order.CustomerTokens))
	assert.True(t, order.HasParticipant("b"))
}

func TestDecimalsEncodeAsNumbers(t *testing.T) {
	item := TableOrderItem{ProductID: 1, Quantity: 1, Price: decimal.RequireFromString("5.5")}
	raw, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":5.5`)
}

func TestApprovalRequestExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	req := ApprovalRequest{Status: ApprovalPending, ExpiresAt: now.Add(20 * time.Second)}

	assert.Equal(t, ApprovalPending, req.EffectiveStatus(now))
	assert.Equal(t, 20, req.TimeLeft(now))
	assert.Equal(t, 1, req.TimeLeft(now.Add(19500*time.Millisecond)), "rounded up")

	later := now.Add(20 * time.Second)
	assert.Equal(t, ApprovalExpired, req.EffectiveStatus(later))
	assert.Zero(t, req.TimeLeft(later))

	req.Status = ApprovalDenied
	assert.Equal(t, ApprovalDenied, req.EffectiveStatus(later), "answered requests keep their status")
}
