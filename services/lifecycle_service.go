package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-table-cart/events"
	"github.com/yeremiapane/restaurant-table-cart/metrics"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LifecycleService moves orders through pending -> processed -> closed and
// handles the staff actions around a seating.
type LifecycleService struct {
	Deps
	Sessions *SessionService
}

func NewLifecycleService(deps Deps, sessions *SessionService) *LifecycleService {
	return &LifecycleService{Deps: deps, Sessions: sessions}
}

// Place submits the pending order to the kitchen. The session must be the
// current one and the order must hold at least one item.
func (s *LifecycleService) Place(ctx context.Context, tableRef, session string) (*models.TableOrder, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		order, err := s.placeOnce(ctx, tableRef, session)
		if errors.Is(err, errVersionConflict) {
			metrics.UpdateRetriesTotal.Inc()
			continue
		}
		return order, err
	}
	return nil, transient("place order", errVersionConflict)
}

func (s *LifecycleService) placeOnce(ctx context.Context, tableRef, session string) (*models.TableOrder, error) {
	table, err := findTable(ctx, s.DB, tableRef)
	if err != nil {
		return nil, err
	}
	if table.IsClosed() {
		return nil, closedError(ctx, s.DB, table)
	}
	order, err := currentOrder(ctx, s.DB, table)
	if err != nil {
		return nil, err
	}
	if order != nil && order.IsClosed() {
		return nil, closedError(ctx, s.DB, table)
	}
	if _, err := s.Sessions.Require(ctx, session, table, order, true); err != nil {
		return nil, err
	}
	if order == nil || order.ItemCount() == 0 {
		return nil, &NothingToPlaceError{}
	}
	if !order.OrderStatus.CanTransition(models.OrderProcessed) {
		return nil, &ConflictError{Message: "order was already placed"}
	}

	now := s.now()
	res := s.DB.WithContext(ctx).Model(&models.TableOrder{}).
		Where("id = ? AND version = ? AND session_id = ? AND order_status = ?", order.ID, order.Version, order.SessionID, models.OrderPending).
		Updates(map[string]interface{}{
			"order_status": models.OrderProcessed,
			"placed_at":    now,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, transient("place order", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errVersionConflict
	}

	order.OrderStatus = models.OrderProcessed
	order.PlacedAt = &now
	order.UpdatedAt = now
	order.Version++

	metrics.OrdersPlacedTotal.Inc()
	metrics.OrderTotalAmount.Observe(order.Total.InexactFloat64())
	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id": table.ID,
		"order_id": order.ID,
		"items":    order.ItemCount(),
		"total":    order.Total.StringFixed(2),
	}).Info("order placed")
	s.publish(ctx, events.Event{Type: events.OrderPlaced, TableID: table.ID, OrderID: order.ID, Status: string(order.OrderStatus), Order: order})
	return order, nil
}

// Close ends the seating: the order is closed, the table stops accepting
// guests and every open approval request is dropped. Closing a closed table
// is a no-op.
func (s *LifecycleService) Close(ctx context.Context, tableRef string) (*models.Table, error) {
	var (
		table    *models.Table
		closedID uint
	)
	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if table, err = findTable(ctx, tx, tableRef); err != nil {
			return err
		}
		if table.IsClosed() {
			return nil
		}
		if closedID, err = closeCurrentOrder(tx, table, now); err != nil {
			return err
		}
		return resetTable(tx, table, models.TableClosed, now)
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{"table_id": table.ID, "order_id": closedID}).Info("table closed")
	if closedID != 0 {
		metrics.OrdersClosedTotal.Inc()
		s.publish(ctx, events.Event{Type: events.OrderClosed, TableID: table.ID, OrderID: closedID, Status: string(models.OrderClosed)})
	}
	return table, nil
}

// Reopen prepares the table for a new seating. Any order still attached is
// superseded (closed) so sessions bound to it report the table as closed.
func (s *LifecycleService) Reopen(ctx context.Context, tableRef string) (*models.Table, error) {
	var (
		table    *models.Table
		closedID uint
	)
	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if table, err = findTable(ctx, tx, tableRef); err != nil {
			return err
		}
		if closedID, err = closeCurrentOrder(tx, table, now); err != nil {
			return err
		}
		return resetTable(tx, table, models.TableOpen, now)
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{"table_id": table.ID, "superseded_order_id": closedID}).Info("table reopened")
	if closedID != 0 {
		metrics.OrdersClosedTotal.Inc()
		s.publish(ctx, events.Event{Type: events.OrderClosed, TableID: table.ID, OrderID: closedID, Status: string(models.OrderClosed)})
	}
	s.publish(ctx, events.Event{Type: events.TableReopened, TableID: table.ID, Status: string(models.TableOpen)})
	return table, nil
}

// closeCurrentOrder closes the table's attached order, if any, and returns its id.
func closeCurrentOrder(tx *gorm.DB, table *models.Table, now time.Time) (uint, error) {
	if table.CurrentOrderID == nil {
		return 0, nil
	}
	orderID := *table.CurrentOrderID
	var order models.TableOrder
	if err := tx.Select("id", "order_status").First(&order, orderID).Error; err != nil {
		return 0, transient("load order", err)
	}
	if !order.OrderStatus.CanTransition(models.OrderClosed) {
		if err := dropForOrder(tx, orderID); err != nil {
			return 0, transient("drop approval requests", err)
		}
		return 0, nil
	}

	res := tx.Model(&models.TableOrder{}).
		Where("id = ? AND order_status <> ?", orderID, models.OrderClosed).
		Updates(map[string]interface{}{
			"order_status": models.OrderClosed,
			"closed_at":    now,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})
	if res.Error != nil {
		return 0, transient("close order", res.Error)
	}
	if err := dropForOrder(tx, orderID); err != nil {
		return 0, transient("drop approval requests", err)
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}
	return orderID, nil
}

func resetTable(tx *gorm.DB, table *models.Table, status models.TableStatus, now time.Time) error {
	err := tx.Model(&models.Table{}).Where("id = ?", table.ID).
		Updates(map[string]interface{}{
			"status":           status,
			"current_order_id": nil,
			"session_id":       "",
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		}).Error
	if err != nil {
		return transient("update table", err)
	}
	table.Status = status
	table.CurrentOrderID = nil
	table.SessionID = ""
	table.Version++
	table.UpdatedAt = now
	return nil
}

// MarkItemProcessed flags one guest's line as acknowledged by the kitchen.
// It does not touch order_status and needs no guest session.
func (s *LifecycleService) MarkItemProcessed(ctx context.Context, orderID, productID uint, customerToken string, processed bool) (*models.TableOrder, error) {
	if productID == 0 {
		return nil, invalid("product_id", "is required")
	}
	if err := validToken("customer_token", customerToken); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		order, err := loadOrder(ctx, s.DB, orderID)
		if err != nil {
			return nil, err
		}
		if order.IsClosed() {
			return nil, &ConflictError{Message: "order is closed"}
		}

		found := false
		items := make([]models.TableOrderItem, len(order.OrderItems))
		copy(items, order.OrderItems)
		for i := range items {
			if items[i].ProductID == productID && items[i].CustomerToken == customerToken {
				items[i].Processed = processed
				found = true
			}
		}
		if !found {
			return nil, &NotFoundError{What: "order item"}
		}

		now := s.now()
		res := s.DB.WithContext(ctx).Model(&models.TableOrder{}).
			Where("id = ? AND version = ? AND order_status <> ?", order.ID, order.Version, models.OrderClosed).
			Updates(map[string]interface{}{
				"order_items": datatypes.JSONSlice[models.TableOrderItem](items),
				"version":     gorm.Expr("version + 1"),
				"updated_at":  now,
			})
		if res.Error != nil {
			return nil, transient("mark item", res.Error)
		}
		if res.RowsAffected == 0 {
			metrics.UpdateRetriesTotal.Inc()
			continue
		}

		order.OrderItems = items
		order.Version++
		order.UpdatedAt = now
		s.publish(ctx, events.Event{Type: events.OrderItemMarked, TableID: order.TableID, OrderID: order.ID, Status: string(order.OrderStatus), Order: order})
		return order, nil
	}
	return nil, transient("mark item", errVersionConflict)
}

// ListOrders returns orders for staff tooling, oldest first. An empty status
// lists every order that is not closed.
func (s *LifecycleService) ListOrders(ctx context.Context, status string) ([]models.TableOrder, error) {
	q := s.DB.WithContext(ctx).Order("created_at asc")
	switch models.OrderStatus(status) {
	case "":
		q = q.Where("order_status <> ?", models.OrderClosed)
	case models.OrderPending, models.OrderProcessed, models.OrderClosed:
		q = q.Where("order_status = ?", status)
	default:
		return nil, invalid("status", "unknown order status %q", status)
	}

	orders := make([]models.TableOrder, 0)
	if err := q.Find(&orders).Error; err != nil {
		return nil, transient("list orders", err)
	}
	return orders, nil
}
