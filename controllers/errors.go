package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var (
		validation *services.ValidationError
		mismatch   *services.SessionMismatchError
		closed     *services.TableClosedError
		required   *services.ApprovalRequiredError
		pending    *services.ApprovalPendingError
		notFound   *services.NotFoundError
		nothing    *services.NothingToPlaceError
		forbidden  *services.ForbiddenError
		conflict   *services.ConflictError
		transient  *services.TransientError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &mismatch), errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &closed), errors.As(err, &required), errors.As(err, &pending), errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound), errors.As(err, &nothing):
		return http.StatusNotFound
	case errors.As(err, &transient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondGuestError writes the flat JSON shapes guest devices branch on.
func respondGuestError(c *gin.Context, err error) {
	code := statusFor(err)

	var (
		closed     *services.TableClosedError
		required   *services.ApprovalRequiredError
		pending    *services.ApprovalPendingError
		mismatch   *services.SessionMismatchError
		validation *services.ValidationError
	)
	switch {
	case errors.As(err, &closed):
		c.JSON(code, gin.H{
			"tableClosed":    true,
			"message":        closed.Message,
			"restaurantName": closed.RestaurantName,
		})
	case errors.As(err, &required):
		c.JSON(code, gin.H{
			"requiresApproval": true,
			"requestId":        required.RequestID,
			"timeLeft":         required.TimeLeft,
		})
	case errors.As(err, &pending):
		c.JSON(code, gin.H{
			"requiresApproval": true,
			"approvalPending":  true,
			"requestId":        pending.RequestID,
			"timeLeft":         pending.TimeLeft,
		})
	case errors.As(err, &mismatch):
		c.JSON(code, gin.H{"sessionMismatch": true, "error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(code, gin.H{"error": err.Error(), "field": validation.Field})
	default:
		if code >= http.StatusInternalServerError {
			utils.ErrorLogger.WithField("path", c.FullPath()).Printf("request failed: %v", err)
		}
		c.JSON(code, gin.H{"error": err.Error(), "retryable": services.IsRetryable(err)})
	}
}

// respondStaffError uses the standard envelope of the staff API.
func respondStaffError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		utils.ErrorLogger.WithField("path", c.FullPath()).Printf("request failed: %v", err)
	}
	utils.RespondError(c, code, err)
}
