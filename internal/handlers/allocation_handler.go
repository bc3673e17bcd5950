package handlers

import (
	"context"
	"net/http"

	"github.com/eventlodge/accommodation-backend/internal/middleware"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AllocationService is what the allocation endpoints need
type AllocationService interface {
	AllocateHostel(ctx context.Context, req *models.HostelAllocationRequest) (*models.AllocationResult, error)
	AllocateHotel(ctx context.Context, req *models.HotelAllocationRequest) (*models.AllocationResult, error)
	ListForUser(ctx context.Context, userID, eventID uuid.UUID) ([]models.Allocation, error)
}

// AllocationHandler links reserved accommodation to registrations
type AllocationHandler struct {
	service AllocationService
	logger  *logrus.Logger
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(service AllocationService, logger *logrus.Logger) *AllocationHandler {
	return &AllocationHandler{service: service, logger: logger}
}

// AllocateHostel handles POST /api/v1/allocations/hostel
func (h *AllocationHandler) AllocateHostel(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.HostelAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error(), nil)
		return
	}
	if req.UserID != userCtx.UserID {
		respondError(c, h.logger, models.ErrUserMismatch, "allocate_hostel")
		return
	}

	result, err := h.service.AllocateHostel(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "allocate_hostel")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// AllocateHotel handles POST /api/v1/allocations/hotel. The room_type_id slot
// may carry a pairing code instead of a room-type reference.
func (h *AllocationHandler) AllocateHotel(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.HotelAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error(), nil)
		return
	}
	if fieldErrors := validator.Validate(&req); fieldErrors != nil {
		badRequest(c, "validation failed", fieldErrors)
		return
	}
	if req.UserID != userCtx.UserID {
		respondError(c, h.logger, models.ErrUserMismatch, "allocate_hotel")
		return
	}

	result, err := h.service.AllocateHotel(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, "allocate_hotel")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListAllocations handles GET /api/v1/allocations?event_id=
func (h *AllocationHandler) ListAllocations(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		badRequest(c, "invalid event_id", nil)
		return
	}

	allocations, err := h.service.ListForUser(c.Request.Context(), userCtx.UserID, eventID)
	if err != nil {
		respondError(c, h.logger, err, "list_allocations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"allocations": allocations})
}
