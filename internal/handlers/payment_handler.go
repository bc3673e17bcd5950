package handlers

import (
	"context"
	"net/http"

	"github.com/eventlodge/accommodation-backend/internal/middleware"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/internal/services"
	"github.com/eventlodge/accommodation-backend/internal/utils"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PaymentService is what the payment endpoints need
type PaymentService interface {
	InitiateCheckout(ctx context.Context, userID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
	HandleWebhook(ctx context.Context, body []byte, token, sourceIP string) (services.WebhookOutcome, error)
	GetStatus(ctx context.Context, userID uuid.UUID, reference string) (*models.PaymentStatusResponse, error)
}

// PaymentHandler handles checkout initiation, the gateway webhook and status reads
type PaymentHandler struct {
	service PaymentService
	logger  *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(service PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

// ============================================================================
// CHECKOUT - POST /api/v1/payments/checkout
// ============================================================================

// Checkout opens (or re-opens) a hosted checkout for an idempotency reference
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error(), nil)
		return
	}
	if fieldErrors := validator.Validate(&req); fieldErrors != nil {
		badRequest(c, "validation failed", fieldErrors)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error(), nil)
		return
	}

	resp, err := h.service.InitiateCheckout(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err, "checkout")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// WEBHOOK - POST /api/v1/payments/webhook
// ============================================================================

// Webhook receives PAYable notifications. It always answers 200 so the
// gateway does not retry; outcomes are recorded in payment_audits.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	bodyBytes, err := c.GetRawData()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read webhook body")
		c.JSON(http.StatusOK, gin.H{"acknowledged": true, "error": "failed to read request body"})
		return
	}

	token := c.Query(services.WebhookTokenParam)
	if token == "" {
		token = c.GetHeader("X-Webhook-Token")
	}

	sourceIP := utils.GetRealIP(c)
	outcome, err := h.service.HandleWebhook(c.Request.Context(), bodyBytes, token, sourceIP)
	if err != nil {
		h.logger.WithError(err).WithField("ip", sourceIP).Warn("Webhook not applied")
		c.JSON(http.StatusOK, gin.H{"acknowledged": true, "error": "webhook not applied"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"outcome": outcome,
		"ip":      sourceIP,
	}).Info("Webhook acknowledged")

	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "outcome": outcome})
}

// ============================================================================
// STATUS - GET /api/v1/payments/:reference
// ============================================================================

// GetStatus returns the webhook-settled status of the caller's payment
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), userCtx.UserID, c.Param("reference"))
	if err != nil {
		respondError(c, h.logger, err, "payment_status")
		return
	}

	c.JSON(http.StatusOK, status)
}
