package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-table-cart/services"
)

type ApprovalController struct {
	Admission *services.AdmissionService
}

func NewApprovalController(admission *services.AdmissionService) *ApprovalController {
	return &ApprovalController{Admission: admission}
}

// RequestAccess -> create or poll the caller's own approval request
func (ac *ApprovalController) RequestAccess(c *gin.Context) {
	var req struct {
		CustomerToken       string `json:"customerToken" binding:"required"`
		CustomerFingerprint string `json:"customerFingerprint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := ac.Admission.RequestAccess(c.Request.Context(), c.Param("table_id"), req.CustomerToken, req.CustomerFingerprint)
	if err != nil {
		respondGuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListPending -> requests waiting for a decision, visible to participants only
func (ac *ApprovalController) ListPending(c *gin.Context) {
	requests, err := ac.Admission.Pending(c.Request.Context(), c.Param("table_id"), c.Query("customerToken"))
	if err != nil {
		respondGuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Resolve -> approve or deny a request
func (ac *ApprovalController) Resolve(c *gin.Context) {
	var req struct {
		RequestID     string `json:"requestId" binding:"required"`
		Action        string `json:"action" binding:"required,oneof=approve deny"`
		ApproverToken string `json:"approverToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ac.Admission.Resolve(c.Request.Context(), c.Param("table_id"), req.RequestID, req.Action, req.ApproverToken); err != nil {
		respondGuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
