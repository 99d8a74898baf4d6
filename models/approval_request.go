package models

import (
	"math"
	"time"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalRequest asks the current participants of an order to admit a new
// guest token. Expiry is evaluated against ExpiresAt whenever the row is read.
type ApprovalRequest struct {
	ID                   string         `gorm:"primaryKey;type:varchar(32)" json:"id"`
	TableID              uint           `gorm:"not null;index:idx_approval_order" json:"table_id"`
	OrderID              uint           `gorm:"not null;index:idx_approval_order" json:"order_id"`
	RequesterToken       string         `gorm:"type:varchar(128);not null;index" json:"requester_token"`
	RequesterFingerprint string         `gorm:"type:varchar(255)" json:"-"`
	Status               ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	ExpiresAt            time.Time      `gorm:"not null;index" json:"expires_at"`
	ResolvedBy           *string        `gorm:"type:varchar(128)" json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
}

// EffectiveStatus folds the lazy TTL into the stored status.
func (r *ApprovalRequest) EffectiveStatus(now time.Time) ApprovalStatus {
	if r.Status == ApprovalPending && !now.Before(r.ExpiresAt) {
		return ApprovalExpired
	}
	return r.Status
}

// TimeLeft is the whole number of seconds until expiry, rounded up.
func (r *ApprovalRequest) TimeLeft(now time.Time) int {
	left := r.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
