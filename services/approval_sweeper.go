package services

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/gorm"
)

// ApprovalSweeper deletes approval rows nobody will read again: requests that
// expired more than Grace ago and requests left behind by closed orders.
// Expiry itself stays lazy; the sweeper only bounds table growth.
type ApprovalSweeper struct {
	DB       *gorm.DB
	Interval time.Duration
	Grace    time.Duration
	Now      func() time.Time
	StopChan chan struct{}
}

func NewApprovalSweeper(db *gorm.DB, ttl time.Duration) *ApprovalSweeper {
	if ttl <= 0 {
		ttl = DefaultApprovalTTL
	}
	return &ApprovalSweeper{
		DB:       db,
		Interval: time.Minute,
		Grace:    ttl,
		Now:      time.Now,
		StopChan: make(chan struct{}),
	}
}

func (s *ApprovalSweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(context.Background()); err != nil {
					utils.ErrorLogger.Printf("approval sweep: %v", err)
				}
			case <-s.StopChan:
				return
			}
		}
	}()
}

func (s *ApprovalSweeper) Stop() {
	close(s.StopChan)
}

// Sweep runs one pass and returns the number of rows removed.
func (s *ApprovalSweeper) Sweep(ctx context.Context) (int64, error) {
	db := s.DB.WithContext(ctx)

	stale := db.Where("expires_at < ?", s.Now().Add(-s.Grace)).Delete(&models.ApprovalRequest{})
	if stale.Error != nil {
		return 0, transient("sweep expired requests", stale.Error)
	}

	closed := db.Where("order_id IN (?)",
		s.DB.Model(&models.TableOrder{}).Select("id").Where("order_status = ?", models.OrderClosed),
	).Delete(&models.ApprovalRequest{})
	if closed.Error != nil {
		return stale.RowsAffected, transient("sweep closed orders", closed.Error)
	}

	removed := stale.RowsAffected + closed.RowsAffected
	if removed > 0 {
		utils.InfoLogger.WithField("removed", removed).Debug("approval requests swept")
	}
	return removed, nil
}
