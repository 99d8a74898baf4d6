package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/yeremiapane/restaurant-table-cart/metrics"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"gorm.io/gorm"
)

const sessionIssuer = "table-cart-session"

// SessionClaims bind a session token to one table and one order. OrderID is
// zero for sessions issued while the table had no order yet.
type SessionClaims struct {
	TableID uint `json:"tid"`
	OrderID uint `json:"oid"`
	jwt.RegisteredClaims
}

// SessionService mints and checks the rotating session token. Only the id of
// the latest token is stored; any earlier token for the same pair is stale.
type SessionService struct {
	Deps
	secret []byte
	newID  func() string
}

func NewSessionService(deps Deps, secret string) (*SessionService, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	gen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("init session id generator: %w", err)
	}
	return &SessionService{Deps: deps, secret: []byte(secret), newID: gen}, nil
}

// sign produces the token for an already chosen session id.
func (s *SessionService) sign(id string, tableID, orderID uint) (string, error) {
	claims := SessionClaims{
		TableID: tableID,
		OrderID: orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       id,
			Issuer:   sessionIssuer,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	metrics.SessionsIssuedTotal.Inc()
	return token, nil
}

// Issue rotates the session of the table (order == nil) or of its order and
// returns the new token. Every earlier token becomes stale.
func (s *SessionService) Issue(ctx context.Context, table *models.Table, order *models.TableOrder) (string, error) {
	var orderID uint
	if order != nil {
		orderID = order.ID
	}
	id := s.newID()
	token, err := s.sign(id, table.ID, orderID)
	if err != nil {
		return "", err
	}

	db := s.DB.WithContext(ctx)
	if order != nil {
		err = db.Model(&models.TableOrder{}).Where("id = ?", order.ID).UpdateColumn("session_id", id).Error
		order.SessionID = id
	} else {
		err = db.Model(&models.Table{}).Where("id = ?", table.ID).UpdateColumn("session_id", id).Error
		table.SessionID = id
	}
	if err != nil {
		return "", transient("store session", err)
	}
	return token, nil
}

// Verify checks signature and table binding only.
func (s *SessionService) Verify(token string, tableID uint) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(sessionIssuer))
	if err != nil || !parsed.Valid {
		return nil, &SessionMismatchError{Reason: "unreadable session"}
	}
	if claims.TableID != tableID {
		return nil, &SessionMismatchError{Reason: "session belongs to another table"}
	}
	return claims, nil
}

// Require enforces that token is the most recently issued session for the
// table's current state. A missing token is only tolerated when allowMissing
// is set and the table has no order yet. A token naming a closed order
// reports the table as closed.
func (s *SessionService) Require(ctx context.Context, token string, table *models.Table, order *models.TableOrder, allowMissing bool) (*SessionClaims, error) {
	if token == "" {
		if order == nil && allowMissing {
			return nil, nil
		}
		return nil, &SessionMismatchError{Reason: "missing session"}
	}

	claims, err := s.Verify(token, table.ID)
	if err != nil {
		return nil, err
	}

	if claims.OrderID != 0 && (order == nil || claims.OrderID != order.ID) {
		if err := s.supersededError(ctx, table, claims.OrderID); err != nil {
			return nil, err
		}
		return nil, &SessionMismatchError{Reason: "session belongs to another order"}
	}

	if order == nil {
		if claims.ID != table.SessionID {
			return nil, &SessionMismatchError{Reason: "stale session"}
		}
		return claims, nil
	}

	if claims.OrderID == 0 {
		return nil, &SessionMismatchError{Reason: "an order was started since this session was issued"}
	}
	if claims.ID != order.SessionID {
		return nil, &SessionMismatchError{Reason: "stale session"}
	}
	return claims, nil
}

// supersededError returns a TableClosedError when orderID is a closed order.
func (s *SessionService) supersededError(ctx context.Context, table *models.Table, orderID uint) error {
	var old models.TableOrder
	err := s.DB.WithContext(ctx).Select("id", "order_status").First(&old, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return transient("load previous order", err)
	}
	if old.IsClosed() {
		return closedError(ctx, s.DB, table)
	}
	return nil
}
