package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-table-cart/events"
	"github.com/yeremiapane/restaurant-table-cart/metrics"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/gorm"
)

const DefaultApprovalTTL = 20 * time.Second

const (
	ActionApprove = "approve"
	ActionDeny    = "deny"
)

// AccessStatus is what a requester sees when polling its own request.
type AccessStatus struct {
	Approved  bool                  `json:"approved"`
	RequestID string                `json:"requestId,omitempty"`
	TimeLeft  int                   `json:"timeLeft,omitempty"`
	Status    models.ApprovalStatus `json:"status"`
}

// PendingRequest is what current participants see for someone waiting to join.
type PendingRequest struct {
	ID             string `json:"id"`
	RequesterToken string `json:"requesterToken"`
	TimeLeft       int    `json:"timeLeft"`
}

// AdmissionService runs the approval workflow that gates new guests joining
// an order that already has participants. Expiry is lazy: a request is
// expired as soon as it is read after ExpiresAt.
type AdmissionService struct {
	Deps
	TTL   time.Duration
	newID func() string
}

func NewAdmissionService(deps Deps, ttl time.Duration) (*AdmissionService, error) {
	if ttl <= 0 {
		ttl = DefaultApprovalTTL
	}
	gen, err := nanoid.Standard(16)
	if err != nil {
		return nil, fmt.Errorf("init approval id generator: %w", err)
	}
	return &AdmissionService{Deps: deps, TTL: ttl, newID: gen}, nil
}

// Gate decides whether token may write to order. The first contributor and
// listed participants pass; anyone else gets ApprovalRequiredError (a fresh
// request was opened) or ApprovalPendingError (one is already open).
func (s *AdmissionService) Gate(ctx context.Context, order *models.TableOrder, token, fingerprint string) error {
	if order.HasParticipant(token) || len(order.CustomerTokens) == 0 {
		return nil
	}

	now := s.now()
	req, err := s.latestRequest(ctx, order.ID, token)
	if err != nil {
		return err
	}
	if req != nil {
		switch req.EffectiveStatus(now) {
		case models.ApprovalPending:
			return &ApprovalPendingError{RequestID: req.ID, TimeLeft: req.TimeLeft(now)}
		case models.ApprovalApproved:
			return nil
		default:
			// denied or lapsed: consumed here, a new request follows
			if err := s.consume(ctx, req, now); err != nil {
				return err
			}
		}
	}

	created, err := s.create(ctx, order, token, fingerprint, now)
	if err != nil {
		return err
	}
	return &ApprovalRequiredError{RequestID: created.ID, TimeLeft: created.TimeLeft(now)}
}

// RequestAccess is the requester's request-or-poll call. It never creates a
// second request while one is pending, and reports a denied or expired
// request exactly once before forgetting it.
func (s *AdmissionService) RequestAccess(ctx context.Context, tableRef, token, fingerprint string) (*AccessStatus, error) {
	if err := validToken("customerToken", token); err != nil {
		return nil, err
	}
	if err := validFingerprint(fingerprint); err != nil {
		return nil, err
	}

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
	if order == nil || order.HasParticipant(token) || len(order.CustomerTokens) == 0 {
		return &AccessStatus{Approved: true, Status: models.ApprovalApproved}, nil
	}
	if order.IsClosed() {
		return nil, closedError(ctx, s.DB, table)
	}

	now := s.now()
	req, err := s.latestRequest(ctx, order.ID, token)
	if err != nil {
		return nil, err
	}
	if req != nil {
		status := req.EffectiveStatus(now)
		switch status {
		case models.ApprovalPending:
			return &AccessStatus{RequestID: req.ID, TimeLeft: req.TimeLeft(now), Status: status}, nil
		case models.ApprovalApproved:
			return &AccessStatus{Approved: true, RequestID: req.ID, Status: status}, nil
		default:
			if err := s.consume(ctx, req, now); err != nil {
				return nil, err
			}
			return &AccessStatus{RequestID: req.ID, Status: status}, nil
		}
	}

	created, err := s.create(ctx, order, token, fingerprint, now)
	if err != nil {
		return nil, err
	}
	return &AccessStatus{RequestID: created.ID, TimeLeft: created.TimeLeft(now), Status: models.ApprovalPending}, nil
}

// Pending lists open requests for a participant to approve or deny.
// Non-participants see nothing.
func (s *AdmissionService) Pending(ctx context.Context, tableRef, participantToken string) ([]PendingRequest, error) {
	if err := validToken("customerToken", participantToken); err != nil {
		return nil, err
	}

	table, err := findTable(ctx, s.DB, tableRef)
	if err != nil {
		return nil, err
	}
	if table.IsClosed() {
		return nil, closedError(ctx, s.DB, table)
	}

	pending := make([]PendingRequest, 0)
	order, err := currentOrder(ctx, s.DB, table)
	if err != nil {
		return nil, err
	}
	if order == nil || !order.HasParticipant(participantToken) {
		return pending, nil
	}

	now := s.now()
	s.purge(ctx, order.ID, now)

	var rows []models.ApprovalRequest
	if err := s.DB.WithContext(ctx).
		Where("order_id = ? AND status = ? AND expires_at > ? AND requester_token <> ?",
			order.ID, models.ApprovalPending, now, participantToken).
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, transient("list approval requests", err)
	}

	for _, r := range rows {
		pending = append(pending, PendingRequest{ID: r.ID, RequesterToken: r.RequesterToken, TimeLeft: r.TimeLeft(now)})
	}
	return pending, nil
}

// Resolve applies a participant's approve/deny decision.
func (s *AdmissionService) Resolve(ctx context.Context, tableRef, requestID, action, approverToken string) error {
	if requestID == "" {
		return invalid("requestId", "is required")
	}
	if action != ActionApprove && action != ActionDeny {
		return invalid("action", "must be %q or %q", ActionApprove, ActionDeny)
	}
	if err := validToken("approverToken", approverToken); err != nil {
		return err
	}

	table, err := findTable(ctx, s.DB, tableRef)
	if err != nil {
		return err
	}
	if table.IsClosed() {
		return closedError(ctx, s.DB, table)
	}
	order, err := currentOrder(ctx, s.DB, table)
	if err != nil {
		return err
	}
	if order == nil {
		return &NotFoundError{What: "approval request " + requestID}
	}
	if !order.HasParticipant(approverToken) {
		return &ForbiddenError{Message: "only guests already sharing this order can answer requests"}
	}

	var req models.ApprovalRequest
	err = s.DB.WithContext(ctx).Where("id = ? AND order_id = ?", requestID, order.ID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{What: "approval request " + requestID}
	}
	if err != nil {
		return transient("load approval request", err)
	}

	now := s.now()
	switch req.EffectiveStatus(now) {
	case models.ApprovalPending:
	case models.ApprovalExpired:
		if err := s.consume(ctx, &req, now); err != nil {
			return err
		}
		return &ConflictError{Message: "approval request has expired"}
	default:
		return &ConflictError{Message: "approval request was already answered"}
	}

	if action == ActionApprove {
		err = s.approve(ctx, order.ID, &req, now)
	} else {
		err = s.deny(ctx, &req, approverToken, now)
	}
	if err != nil {
		return err
	}

	status := models.ApprovalDenied
	if action == ActionApprove {
		status = models.ApprovalApproved
	}
	metrics.ApprovalRequestsTotal.WithLabelValues(string(status)).Inc()
	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id":   table.ID,
		"order_id":   order.ID,
		"request_id": req.ID,
	}).Infof("approval request %s", status)
	s.publish(ctx, events.Event{Type: events.ApprovalResolved, TableID: table.ID, OrderID: order.ID, RequestID: req.ID, Status: string(status)})
	return nil
}

// approve adds the requester to the order and removes the request in one
// transaction, retrying when another write bumped the order version.
func (s *AdmissionService) approve(ctx context.Context, orderID uint, req *models.ApprovalRequest, now time.Time) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var order models.TableOrder
			if err := tx.First(&order, orderID).Error; err != nil {
				return transient("load order", err)
			}
			if order.IsClosed() {
				return &ConflictError{Message: "order is closed"}
			}

			order.AddParticipant(req.RequesterToken)
			res := tx.Model(&models.TableOrder{}).
				Where("id = ? AND version = ?", order.ID, order.Version).
				Updates(map[string]interface{}{
					"customer_tokens": order.CustomerTokens,
					"version":         gorm.Expr("version + 1"),
					"updated_at":      s.now(),
				})
			if res.Error != nil {
				return transient("admit guest", res.Error)
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}

			del := tx.Where("id = ? AND status = ? AND expires_at > ?", req.ID, models.ApprovalPending, now).
				Delete(&models.ApprovalRequest{})
			if del.Error != nil {
				return transient("remove approval request", del.Error)
			}
			if del.RowsAffected == 0 {
				return &ConflictError{Message: "approval request was already answered or expired"}
			}
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			metrics.UpdateRetriesTotal.Inc()
			continue
		}
		return err
	}
	return transient("admit guest", errVersionConflict)
}

func (s *AdmissionService) deny(ctx context.Context, req *models.ApprovalRequest, approver string, now time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.ApprovalRequest{}).
		Where("id = ? AND status = ? AND expires_at > ?", req.ID, models.ApprovalPending, now).
		Updates(map[string]interface{}{
			"status":      models.ApprovalDenied,
			"resolved_by": approver,
			"resolved_at": now,
		})
	if res.Error != nil {
		return transient("deny approval request", res.Error)
	}
	if res.RowsAffected == 0 {
		return &ConflictError{Message: "approval request was already answered or expired"}
	}
	return nil
}

// create opens a request expiring one TTL after now, the same instant the
// caller reports TimeLeft against.
func (s *AdmissionService) create(ctx context.Context, order *models.TableOrder, token, fingerprint string, now time.Time) (*models.ApprovalRequest, error) {
	req := &models.ApprovalRequest{
		ID:                   s.newID(),
		TableID:              order.TableID,
		OrderID:              order.ID,
		RequesterToken:       token,
		RequesterFingerprint: fingerprint,
		Status:               models.ApprovalPending,
		ExpiresAt:            now.Add(s.TTL),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.DB.WithContext(ctx).Create(req).Error; err != nil {
		return nil, transient("create approval request", err)
	}

	metrics.ApprovalRequestsTotal.WithLabelValues(string(models.ApprovalPending)).Inc()
	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id":   order.TableID,
		"order_id":   order.ID,
		"request_id": req.ID,
	}).Info("approval requested")
	s.publish(ctx, events.Event{Type: events.ApprovalRequested, TableID: order.TableID, OrderID: order.ID, RequestID: req.ID, Status: string(models.ApprovalPending)})
	return req, nil
}

func (s *AdmissionService) latestRequest(ctx context.Context, orderID uint, token string) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	err := s.DB.WithContext(ctx).
		Where("order_id = ? AND requester_token = ?", orderID, token).
		Order("created_at desc").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, transient("load approval request", err)
	}
	return &req, nil
}

// consume deletes a request that reached a terminal state.
func (s *AdmissionService) consume(ctx context.Context, req *models.ApprovalRequest, now time.Time) error {
	if req.EffectiveStatus(now) == models.ApprovalExpired && req.Status == models.ApprovalPending {
		metrics.ApprovalRequestsTotal.WithLabelValues(string(models.ApprovalExpired)).Inc()
	}
	if err := s.DB.WithContext(ctx).Delete(&models.ApprovalRequest{}, "id = ?", req.ID).Error; err != nil {
		return transient("remove approval request", err)
	}
	return nil
}

// purge drops rows nobody came back for within one TTL after expiry.
func (s *AdmissionService) purge(ctx context.Context, orderID uint, now time.Time) {
	err := s.DB.WithContext(ctx).
		Where("order_id = ? AND expires_at < ?", orderID, now.Add(-s.TTL)).
		Delete(&models.ApprovalRequest{}).Error
	if err != nil {
		utils.ErrorLogger.WithField("order_id", orderID).Printf("purge approval requests: %v", err)
	}
}

// dropForOrder removes every request of an order, used when it closes.
func dropForOrder(tx *gorm.DB, orderID uint) error {
	return tx.Where("order_id = ?", orderID).Delete(&models.ApprovalRequest{}).Error
}
