package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
)

type OrderController struct {
	Lifecycle *services.LifecycleService
}

func NewOrderController(lifecycle *services.LifecycleService) *OrderController {
	return &OrderController{Lifecycle: lifecycle}
}

// PlaceOrder -> guest submits the pending table order to the kitchen
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := oc.Lifecycle.Place(c.Request.Context(), c.Param("table_id"), req.SessionID)
	if err != nil {
		respondGuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": order.ID, "status": order.OrderStatus})
}

// GetAllOrders -> list orders for staff screens, optional ?status=
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := oc.Lifecycle.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondStaffError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// MarkItemProcessed -> kitchen acknowledges one guest's line
func (oc *OrderController) MarkItemProcessed(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid order id"))
		return
	}

	var req struct {
		ProductID     uint   `json:"product_id" binding:"required"`
		CustomerToken string `json:"customer_token" binding:"required"`
		Processed     *bool  `json:"processed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	processed := true
	if req.Processed != nil {
		processed = *req.Processed
	}

	order, err := oc.Lifecycle.MarkItemProcessed(c.Request.Context(), uint(orderID), req.ProductID, req.CustomerToken, processed)
	if err != nil {
		respondStaffError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item updated", order)
}
