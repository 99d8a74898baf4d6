package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-table-cart/events"
	"github.com/yeremiapane/restaurant-table-cart/metrics"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/gorm"
)

const (
	maxLinesPerGuest = 100
	maxLineQuantity  = 99
)

// ItemInput is one line of a guest's full replacement cart. Price and name
// sent by the client are ignored; the catalog snapshot is authoritative.
type ItemInput struct {
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Name      string           `json:"name,omitempty"`
}

type SubmitInput struct {
	RestaurantID  uint
	Items         []ItemInput
	CustomerToken string
	SessionID     string
	Fingerprint   string
}

func (in *SubmitInput) validate() error {
	if in.RestaurantID == 0 {
		return invalid("restaurantId", "is required")
	}
	if err := validToken("customerToken", in.CustomerToken); err != nil {
		return err
	}
	if err := validFingerprint(in.Fingerprint); err != nil {
		return err
	}
	if len(in.Items) > maxLinesPerGuest {
		return invalid("items", "at most %d lines per guest", maxLinesPerGuest)
	}
	for i, item := range in.Items {
		if item.ProductID == 0 {
			return invalid(fmt.Sprintf("items[%d].product_id", i), "is required")
		}
		if item.Quantity > maxLineQuantity {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be at most %d", maxLineQuantity)
		}
	}
	return nil
}

// GuestView is the slice of an order that belongs to one customer token.
type GuestView struct {
	CustomerToken string                  `json:"customerToken"`
	Participant   bool                    `json:"participant"`
	Items         []models.TableOrderItem `json:"items"`
	Subtotal      decimal.Decimal         `json:"subtotal"`
}

func guestView(order *models.TableOrder, token string) *GuestView {
	if order == nil || token == "" {
		return nil
	}
	items := order.ItemsFor(token)
	return &GuestView{
		CustomerToken: token,
		Participant:   order.HasParticipant(token),
		Items:         items,
		Subtotal:      models.SumItems(items),
	}
}

// OrderState is what a guest device receives after a read or a write.
type OrderState struct {
	Table     *models.Table      `json:"-"`
	Order     *models.TableOrder `json:"order"`
	SessionID string             `json:"sessionId"`
	Guest     *GuestView         `json:"guest,omitempty"`
}

// OrderService aggregates every guest's cart into the table's single order.
type OrderService struct {
	Deps
	Sessions  *SessionService
	Admission *AdmissionService
	Catalog   Catalog
}

func NewOrderService(deps Deps, sessions *SessionService, admission *AdmissionService, catalog Catalog) *OrderService {
	return &OrderService{Deps: deps, Sessions: sessions, Admission: admission, Catalog: catalog}
}

// State returns the current order (nil when none exists yet) and rotates the
// session. A presented session that names a closed order reports the table as
// closed even if staff already reopened it for the next seating.
func (s *OrderService) State(ctx context.Context, tableRef, presented, customerToken string) (*OrderState, error) {
	table, err := findTable(ctx, s.DB, tableRef)
	if err != nil {
		return nil, err
	}
	if table.IsClosed() {
		return nil, closedError(ctx, s.DB, table)
	}

	if presented != "" {
		claims, verr := s.Sessions.Verify(presented, table.ID)
		if verr == nil && claims.OrderID != 0 && (table.CurrentOrderID == nil || *table.CurrentOrderID != claims.OrderID) {
			if err := s.Sessions.supersededError(ctx, table, claims.OrderID); err != nil {
				return nil, err
			}
		}
	}

	order, err := currentOrder(ctx, s.DB, table)
	if err != nil {
		return nil, err
	}
	if order != nil && order.IsClosed() {
		return nil, closedError(ctx, s.DB, table)
	}

	token, err := s.Sessions.Issue(ctx, table, order)
	if err != nil {
		return nil, err
	}
	return &OrderState{Table: table, Order: order, SessionID: token, Guest: guestView(order, customerToken)}, nil
}

// Submit replaces the caller's lines in the shared order with in.Items. Lines
// of other guests are never touched. The first write on a table creates the
// order and binds a fresh session to it.
func (s *OrderService) Submit(ctx context.Context, tableRef string, in SubmitInput) (*OrderState, error) {
	state, err := s.submit(ctx, tableRef, in)
	metrics.CartSubmissionsTotal.WithLabelValues(outcomeOf(err)).Inc()
	return state, err
}

func (s *OrderService) submit(ctx context.Context, tableRef string, in SubmitInput) (*OrderState, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	table, err := findTable(ctx, s.DB, tableRef)
	if err != nil {
		return nil, err
	}
	if table.RestaurantID != in.RestaurantID {
		return nil, invalid("restaurantId", "does not match this table")
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if attempt > 0 {
			metrics.UpdateRetriesTotal.Inc()
			if table, err = findTable(ctx, s.DB, strconv.FormatUint(uint64(table.ID), 10)); err != nil {
				return nil, err
			}
		}
		state, err := s.submitOnce(ctx, table, in)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		return state, err
	}
	return nil, transient("save cart", errVersionConflict)
}

func (s *OrderService) submitOnce(ctx context.Context, table *models.Table, in SubmitInput) (*OrderState, error) {
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

	if _, err := s.Sessions.Require(ctx, in.SessionID, table, order, true); err != nil {
		return nil, err
	}
	if order != nil {
		if err := s.Admission.Gate(ctx, order, in.CustomerToken, in.Fingerprint); err != nil {
			return nil, err
		}
	}

	var existing []models.TableOrderItem
	if order != nil {
		existing = order.OrderItems
	}
	products, err := s.Catalog.Lookup(ctx, table.RestaurantID, newProducts(existing, in.CustomerToken, in.Items))
	if err != nil {
		return nil, err
	}
	items := replaceGuestItems(existing, in.CustomerToken, in.Items, products)

	if order == nil {
		return s.create(ctx, table, in, items)
	}
	return s.update(ctx, table, order, in, items)
}

// create starts the table's order. The table row is claimed with a version
// check so two first writers cannot both attach an order.
func (s *OrderService) create(ctx context.Context, table *models.Table, in SubmitInput, items []models.TableOrderItem) (*OrderState, error) {
	if len(items) == 0 {
		// clearing an empty cart does not open a seating
		token, err := s.Sessions.Issue(ctx, table, nil)
		if err != nil {
			return nil, err
		}
		return &OrderState{Table: table, SessionID: token}, nil
	}

	now := s.now()
	sid := s.Sessions.newID()
	order := &models.TableOrder{
		TableID:        table.ID,
		RestaurantID:   table.RestaurantID,
		OrderStatus:    models.OrderPending,
		OrderItems:     items,
		CustomerTokens: []string{in.CustomerToken},
		SessionID:      sid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.Recalculate()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return transient("create order", err)
		}
		q := tx.Model(&models.Table{}).
			Where("id = ? AND version = ? AND current_order_id IS NULL AND status = ?", table.ID, table.Version, models.TableOpen)
		if in.SessionID != "" {
			q = q.Where("session_id = ?", table.SessionID)
		}
		res := q.Updates(map[string]interface{}{
			"current_order_id": order.ID,
			"session_id":       "",
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		})
		if res.Error != nil {
			return transient("attach order", res.Error)
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	table.CurrentOrderID = &order.ID
	table.SessionID = ""
	table.Version++

	token, err := s.Sessions.sign(sid, table.ID, order.ID)
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id": table.ID,
		"order_id": order.ID,
		"total":    order.Total.StringFixed(2),
	}).Info("order created")
	s.publish(ctx, events.Event{Type: events.OrderCreated, TableID: table.ID, OrderID: order.ID, Status: string(order.OrderStatus), Order: order})
	return &OrderState{Table: table, Order: order, SessionID: token, Guest: guestView(order, in.CustomerToken)}, nil
}

// update rewrites the order row only if nobody else wrote it, rotated its
// session or closed it since it was read.
func (s *OrderService) update(ctx context.Context, table *models.Table, order *models.TableOrder, in SubmitInput, items []models.TableOrderItem) (*OrderState, error) {
	now := s.now()
	updated := *order
	updated.OrderItems = items
	updated.CustomerTokens = append([]string(nil), order.CustomerTokens...)
	updated.AddParticipant(in.CustomerToken)
	updated.Recalculate()

	res := s.DB.WithContext(ctx).Model(&models.TableOrder{}).
		Where("id = ? AND version = ? AND session_id = ? AND order_status <> ?", order.ID, order.Version, order.SessionID, models.OrderClosed).
		Updates(map[string]interface{}{
			"order_items":     updated.OrderItems,
			"customer_tokens": updated.CustomerTokens,
			"subtotal":        updated.Subtotal,
			"total":           updated.Total,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		})
	if res.Error != nil {
		return nil, transient("update order", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errVersionConflict
	}
	updated.Version++
	updated.UpdatedAt = now

	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id": table.ID,
		"order_id": order.ID,
		"lines":    len(updated.OrderItems),
	}).Debug("order updated")
	s.publish(ctx, events.Event{Type: events.OrderUpdated, TableID: table.ID, OrderID: order.ID, Status: string(updated.OrderStatus), Order: &updated})
	return &OrderState{Table: table, Order: &updated, SessionID: in.SessionID, Guest: guestView(&updated, in.CustomerToken)}, nil
}

// collapseItems drops non-positive quantities and sums duplicate products,
// keeping first-seen order.
func collapseItems(in []ItemInput) ([]uint, map[uint]int) {
	qty := make(map[uint]int, len(in))
	var ids []uint
	for _, item := range in {
		if item.Quantity <= 0 {
			continue
		}
		if _, seen := qty[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		qty[item.ProductID] += item.Quantity
	}
	return ids, qty
}

// newProducts lists the products token is adding for the first time; only
// these need a catalog snapshot.
func newProducts(current []models.TableOrderItem, token string, in []ItemInput) []uint {
	had := make(map[uint]bool)
	for _, item := range current {
		if item.CustomerToken == token {
			had[item.ProductID] = true
		}
	}
	ids, _ := collapseItems(in)
	var missing []uint
	for _, id := range ids {
		if !had[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// replaceGuestItems swaps token's lines in current for the replacement set.
// Existing lines keep their price snapshot. The processed flag survives only
// while the quantity does not grow, so added units reach the kitchen again.
func replaceGuestItems(current []models.TableOrderItem, token string, in []ItemInput, products map[uint]models.Product) []models.TableOrderItem {
	previous := make(map[uint]models.TableOrderItem)
	merged := make([]models.TableOrderItem, 0, len(current)+len(in))
	for _, item := range current {
		if item.CustomerToken != token {
			merged = append(merged, item)
			continue
		}
		if _, dup := previous[item.ProductID]; !dup {
			previous[item.ProductID] = item
		}
	}

	ids, qty := collapseItems(in)
	for _, id := range ids {
		if prev, ok := previous[id]; ok {
			if qty[id] > prev.Quantity {
				prev.Processed = false
			}
			prev.Quantity = qty[id]
			merged = append(merged, prev)
			continue
		}
		p := products[id]
		merged = append(merged, models.TableOrderItem{
			ProductID:     id,
			Quantity:      qty[id],
			Price:         p.Price.Round(2),
			Name:          p.Name,
			CustomerToken: token,
		})
	}
	return merged
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		required   *ApprovalRequiredError
		pending    *ApprovalPendingError
		mismatch   *SessionMismatchError
		closed     *TableClosedError
		validation *ValidationError
	)
	switch {
	case errors.As(err, &required):
		return "approval_required"
	case errors.As(err, &pending):
		return "approval_pending"
	case errors.As(err, &mismatch):
		return "session_mismatch"
	case errors.As(err, &closed):
		return "table_closed"
	case errors.As(err, &validation):
		return "invalid"
	default:
		return "error"
	}
}
