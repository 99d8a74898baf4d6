package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/gorm"
)

type TableController struct {
	DB        *gorm.DB
	Lifecycle *services.LifecycleService
}

func NewTableController(db *gorm.DB, lifecycle *services.LifecycleService) *TableController {
	return &TableController{DB: db, Lifecycle: lifecycle}
}

// GetAllTables -> menampilkan seluruh meja
func (tc *TableController) GetAllTables(c *gin.Context) {
	var tables []models.Table
	if err := tc.DB.WithContext(c.Request.Context()).Order("id asc").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// CloseTable -> end the seating; guests see the closed notice from now on
func (tc *TableController) CloseTable(c *gin.Context) {
	table, err := tc.Lifecycle.Close(c.Request.Context(), c.Param("table_id"))
	if err != nil {
		respondStaffError(c, err)
		return
	}
	utils.InfoLogger.Printf("Table %s closed by user %v", table.Code, c.GetUint("userID"))
	utils.RespondJSON(c, http.StatusOK, "Table closed", table)
}

// OpenTable -> start a new seating, superseding any order still attached
func (tc *TableController) OpenTable(c *gin.Context) {
	table, err := tc.Lifecycle.Reopen(c.Request.Context(), c.Param("table_id"))
	if err != nil {
		respondStaffError(c, err)
		return
	}
	utils.InfoLogger.Printf("Table %s reopened by user %v", table.Code, c.GetUint("userID"))
	utils.RespondJSON(c, http.StatusOK, "Table opened", table)
}
