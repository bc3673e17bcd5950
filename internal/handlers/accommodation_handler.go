package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/eventlodge/accommodation-backend/internal/middleware"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AccommodationService is what the accommodation endpoints need
type AccommodationService interface {
	GetCatalog(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) (*models.CatalogResponse, error)
	Reserve(ctx context.Context, userID uuid.UUID, req *models.ReserveRequest) (*models.Booking, error)
}

// AccommodationHandler handles catalog reads and reservations
type AccommodationHandler struct {
	service AccommodationService
	logger  *logrus.Logger
}

// NewAccommodationHandler creates a new AccommodationHandler
func NewAccommodationHandler(service AccommodationService, logger *logrus.Logger) *AccommodationHandler {
	return &AccommodationHandler{service: service, logger: logger}
}

// ============================================================================
// CATALOG - GET /api/v1/events/:event_id/accommodations?kind=HOSTEL|HOTEL
// ============================================================================

// GetCatalog returns facilities with nested rooms and beds for an event
func (h *AccommodationHandler) GetCatalog(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		badRequest(c, "invalid event_id", nil)
		return
	}

	kindParam := c.Query("kind")
	if err := validator.ValidateVar(kindParam, "required,accommodation_kind"); err != nil {
		badRequest(c, "kind must be HOSTEL or HOTEL", nil)
		return
	}
	kind, _ := models.ParseAccommodationKind(kindParam)

	catalog, err := h.service.GetCatalog(c.Request.Context(), eventID, kind)
	if err != nil {
		respondError(c, h.logger, err, "get_catalog")
		return
	}

	c.JSON(http.StatusOK, catalog)
}

// ============================================================================
// RESERVE - POST /api/v1/accommodations/reserve
// ============================================================================

// Reserve claims a bed (hostel) or room (hotel). A lost race answers 409.
func (h *AccommodationHandler) Reserve(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error(), nil)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error(), nil)
		return
	}

	booking, err := h.service.Reserve(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		if errors.Is(err, models.ErrUnitTaken) {
			message := "bed space already booked"
			if req.Kind == models.AccommodationHotel {
				message = "room already booked"
			}
			c.JSON(http.StatusConflict, gin.H{"error": "unit_taken", "message": message})
			return
		}
		respondError(c, h.logger, err, "reserve")
		return
	}

	c.JSON(http.StatusCreated, booking)
}
