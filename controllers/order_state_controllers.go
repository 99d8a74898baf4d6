package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-table-cart/services"
)

type OrderStateController struct {
	Orders *services.OrderService
}

func NewOrderStateController(orders *services.OrderService) *OrderStateController {
	return &OrderStateController{Orders: orders}
}

// GetState -> current table order plus a freshly rotated session
func (oc *OrderStateController) GetState(c *gin.Context) {
	state, err := oc.Orders.State(c.Request.Context(), c.Param("table_id"), c.Query("session"), c.Query("customerToken"))
	var closed *services.TableClosedError
	if errors.As(err, &closed) {
		// a closed table is a normal read result
		c.JSON(http.StatusOK, gin.H{
			"tableClosed":    true,
			"message":        closed.Message,
			"restaurantName": closed.RestaurantName,
		})
		return
	}
	if err != nil {
		respondGuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type submitRequest struct {
	RestaurantID        uint                 `json:"restaurantId" binding:"required"`
	Items               []services.ItemInput `json:"items"`
	CustomerToken       string               `json:"customerToken" binding:"required"`
	SessionID           string               `json:"sessionId"`
	CustomerFingerprint string               `json:"customerFingerprint"`
}

// SubmitCart -> replace the caller's items in the shared order
func (oc *OrderStateController) SubmitCart(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := oc.Orders.Submit(c.Request.Context(), c.Param("table_id"), services.SubmitInput{
		RestaurantID:  req.RestaurantID,
		Items:         req.Items,
		CustomerToken: req.CustomerToken,
		SessionID:     req.SessionID,
		Fingerprint:   req.CustomerFingerprint,
	})
	if err != nil {
		respondGuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
