package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func init() {
	// Wire decimals as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderProcessed OrderStatus = "processed"
	OrderClosed    OrderStatus = "closed"
)

var orderStatusRank = map[OrderStatus]int{
	OrderPending:   0,
	OrderProcessed: 1,
	OrderClosed:    2,
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic. closed is terminal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return s != OrderClosed && to > from
}

// TableOrder is the shared cart of one table for one seating. Items and
// participant tokens live in JSON columns so the whole cart is rewritten by a
// single-row update.
type TableOrder struct {
	ID             uint                                `gorm:"primaryKey" json:"id"`
	TableID        uint                                `gorm:"not null;index" json:"table_id"`
	RestaurantID   uint                                `gorm:"not null;index" json:"restaurant_id"`
	OrderStatus    OrderStatus                         `gorm:"type:varchar(20);not null;default:'pending';index" json:"order_status"`
	OrderItems     datatypes.JSONSlice[TableOrderItem] `json:"order_items"`
	Subtotal       decimal.Decimal                     `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal"`
	Total          decimal.Decimal                     `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	CustomerTokens datatypes.JSONSlice[string]         `json:"customer_tokens"`
	SessionID      string                              `gorm:"type:varchar(64)" json:"-"`
	Version        int64                               `gorm:"not null;default:0" json:"-"`
	PlacedAt       *time.Time                          `json:"placed_at,omitempty"`
	ClosedAt       *time.Time                          `json:"closed_at,omitempty"`
	CreatedAt      time.Time                           `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"not null" json:"updated_at"`
}

func (o *TableOrder) IsClosed() bool {
	return o.OrderStatus == OrderClosed
}

func (o *TableOrder) HasParticipant(token string) bool {
	for _, t := range o.CustomerTokens {
		if t == token {
			return true
		}
	}
	return false
}

// AddParticipant appends token to CustomerTokens unless already present.
func (o *TableOrder) AddParticipant(token string) {
	if o.HasParticipant(token) {
		return
	}
	o.CustomerTokens = append(o.CustomerTokens, token)
}

// ItemsFor returns the slice of items attributed to token.
func (o *TableOrder) ItemsFor(token string) []TableOrderItem {
	items := make([]TableOrderItem, 0)
	for _, item := range o.OrderItems {
		if item.CustomerToken == token {
			items = append(items, item)
		}
	}
	return items
}

// ItemCount is the aggregate quantity across every guest.
func (o *TableOrder) ItemCount() int {
	count := 0
	for _, item := range o.OrderItems {
		count += item.Quantity
	}
	return count
}

// Recalculate sets Subtotal and Total from the item snapshots.
func (o *TableOrder) Recalculate() {
	o.Subtotal = SumItems(o.OrderItems)
	o.Total = o.Subtotal
}

func SumItems(items []TableOrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum.Round(2)
}
