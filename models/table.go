package models

import "time"

type TableStatus string

const (
	TableOpen   TableStatus = "open"
	TableClosed TableStatus = "closed"
)

// Table is the anchor row for one physical table. While the table has no
// order, SessionID carries the session id issued to readers; once an order
// exists the session lives on the order row instead.
type Table struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	RestaurantID   uint        `gorm:"not null;index" json:"restaurant_id"`
	Restaurant     Restaurant  `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Code           string      `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Status         TableStatus `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	CurrentOrderID *uint       `gorm:"index" json:"current_order_id,omitempty"`
	SessionID      string      `gorm:"type:varchar(64)" json:"-"`
	Version        int64       `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"not null" json:"updated_at"`
}

func (t *Table) IsClosed() bool {
	return t.Status == TableClosed
}
