package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/gorm"
)

type AdminController struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{DB: db, Now: time.Now}
}

type dashboardStats struct {
	TableStats struct {
		Open   int64 `json:"open"`
		Closed int64 `json:"closed"`
		Seated int64 `json:"seated"`
	} `json:"table_stats"`
	OrderStats struct {
		Pending   int64 `json:"pending"`
		Processed int64 `json:"processed"`
		Closed    int64 `json:"closed"`
	} `json:"order_stats"`
	TodayOrders      int64           `json:"today_orders"`
	TodayPlacedTotal decimal.Decimal `json:"today_placed_total"`
	PendingApprovals int64           `json:"pending_approvals"`
}

// GetDashboardStats mengambil statistik untuk dashboard
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	db := ac.DB.WithContext(c.Request.Context())
	now := ac.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var stats dashboardStats
	queries := []*gorm.DB{
		// Table stats
		db.Model(&models.Table{}).Where("status = ?", models.TableOpen).Count(&stats.TableStats.Open),
		db.Model(&models.Table{}).Where("status = ?", models.TableClosed).Count(&stats.TableStats.Closed),
		db.Model(&models.Table{}).Where("current_order_id IS NOT NULL").Count(&stats.TableStats.Seated),

		// Order status counts
		db.Model(&models.TableOrder{}).Where("order_status = ?", models.OrderPending).Count(&stats.OrderStats.Pending),
		db.Model(&models.TableOrder{}).Where("order_status = ?", models.OrderProcessed).Count(&stats.OrderStats.Processed),
		db.Model(&models.TableOrder{}).Where("order_status = ?", models.OrderClosed).Count(&stats.OrderStats.Closed),
		db.Model(&models.TableOrder{}).Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).Count(&stats.TodayOrders),

		db.Model(&models.ApprovalRequest{}).
			Where("status = ? AND expires_at > ?", models.ApprovalPending, now).
			Count(&stats.PendingApprovals),
	}
	for _, q := range queries {
		if q.Error != nil {
			utils.ErrorLogger.Printf("dashboard stats: %v", q.Error)
			utils.RespondError(c, http.StatusInternalServerError, q.Error)
			return
		}
	}

	// Today's placed orders, whatever happened to them afterwards
	var placed []models.TableOrder
	if err := db.Select("id", "total").
		Where("placed_at >= ? AND placed_at < ?", dayStart, dayEnd).
		Find(&placed).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	stats.TodayPlacedTotal = decimal.Zero
	for _, o := range placed {
		stats.TodayPlacedTotal = stats.TodayPlacedTotal.Add(o.Total)
	}

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats retrieved successfully", stats)
}
