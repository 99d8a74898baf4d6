package events

import (
	"context"
	"errors"
	"time"

	"github.com/yeremiapane/restaurant-table-cart/models"
)

// Event types
const (
	OrderCreated      = "order.created"
	OrderUpdated      = "order.updated"
	OrderPlaced       = "order.placed"
	OrderClosed       = "order.closed"
	OrderItemMarked   = "order.item_processed"
	TableReopened     = "table.reopened"
	ApprovalRequested = "approval.requested"
	ApprovalResolved  = "approval.resolved"
)

// Event is the payload fanned out to staff tooling.
type Event struct {
	Type       string             `json:"type"`
	TableID    uint               `json:"table_id"`
	OrderID    uint               `json:"order_id,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
	Status     string             `json:"status,omitempty"`
	Order      *models.TableOrder `json:"order,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Fanout delivers to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
