package handlers

import (
	"errors"
	"net/http"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and reported as an internal error without echoing its text.
func respondError(c *gin.Context, logger *logrus.Logger, err error, operation string) {
	var gatewayErr *services.GatewayError

	switch {
	case errors.Is(err, models.ErrUnitTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "unit_taken", "message": err.Error()})
	case errors.Is(err, models.ErrUnitNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unit_not_found", "message": err.Error()})
	case errors.Is(err, models.ErrFacilityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "facility_not_found", "message": err.Error()})
	case errors.Is(err, models.ErrPairingCodeInvalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "pairing_code_invalid", "message": err.Error()})
	case errors.Is(err, models.ErrInvalidRoomType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room_type", "message": err.Error()})
	case errors.Is(err, models.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment_not_found", "message": err.Error()})
	case errors.Is(err, models.ErrUserMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "user_mismatch", "message": err.Error()})
	case errors.Is(err, models.ErrReferenceConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "reference_conflict", "message": err.Error()})
	case errors.Is(err, models.ErrPaymentClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "payment_closed", "message": err.Error()})
	case errors.As(err, &gatewayErr):
		logger.WithError(err).WithField("operation", operation).Error("Payment gateway error")
		c.JSON(http.StatusBadGateway, gin.H{"error": "gateway_error", "message": "payment gateway is unavailable, please try again"})
	default:
		logger.WithError(err).WithField("operation", operation).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "something went wrong, please try again"})
	}
}

// badRequest writes a validation failure
func badRequest(c *gin.Context, message string, fields map[string]string) {
	body := gin.H{"error": "invalid_request", "message": message}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	c.JSON(http.StatusBadRequest, body)
}
