package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAllocationService struct {
	mock.Mock
}

func (m *mockAllocationService) AllocateHostel(ctx context.Context, req *models.HostelAllocationRequest) (*models.AllocationResult, error) {
	args := m.Called(ctx, req)
	if result, ok := args.Get(0).(*models.AllocationResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAllocationService) AllocateHotel(ctx context.Context, req *models.HotelAllocationRequest) (*models.AllocationResult, error) {
	args := m.Called(ctx, req)
	if result, ok := args.Get(0).(*models.AllocationResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAllocationService) ListForUser(ctx context.Context, userID, eventID uuid.UUID) ([]models.Allocation, error) {
	args := m.Called(ctx, userID, eventID)
	allocations, _ := args.Get(0).([]models.Allocation)
	return allocations, args.Error(1)
}

func setupAllocationRouter(userID uuid.UUID, service *mockAllocationService) *gin.Engine {
	router := newTestRouter(userID)
	handler := NewAllocationHandler(service, testLogger())
	router.POST("/api/v1/allocations/hostel", handler.AllocateHostel)
	router.POST("/api/v1/allocations/hotel", handler.AllocateHotel)
	router.GET("/api/v1/allocations", handler.ListAllocations)
	return router
}

func hotelBody(userID uuid.UUID, roomType string) map[string]interface{} {
	return map[string]interface{}{
		"registration_id": uuid.New(),
		"room_type_id":    roomType,
		"event_id":        uuid.New(),
		"user_id":         userID,
		"facility_id":     uuid.New(),
	}
}

func TestAllocateHostelHandler(t *testing.T) {
	userID := uuid.New()
	body := map[string]interface{}{
		"registration_id": uuid.New(),
		"event_id":        uuid.New(),
		"user_id":         userID,
		"facility_id":     uuid.New(),
	}

	t.Run("created", func(t *testing.T) {
		service := new(mockAllocationService)
		service.On("AllocateHostel", mock.Anything, mock.Anything).
			Return(&models.AllocationResult{AllocationID: uuid.New(), Status: models.AllocationPendingPayment}, nil)

		w := doJSON(t, setupAllocationRouter(userID, service), http.MethodPost, "/api/v1/allocations/hostel", body)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "pending_payment", decodeBody(t, w)["status"])
	})

	t.Run("body names another user", func(t *testing.T) {
		service := new(mockAllocationService)

		w := doJSON(t, setupAllocationRouter(uuid.New(), service), http.MethodPost, "/api/v1/allocations/hostel", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
		service.AssertNotCalled(t, "AllocateHostel", mock.Anything, mock.Anything)
	})

	t.Run("facility not found", func(t *testing.T) {
		service := new(mockAllocationService)
		service.On("AllocateHostel", mock.Anything, mock.Anything).Return(nil, models.ErrFacilityNotFound)

		w := doJSON(t, setupAllocationRouter(userID, service), http.MethodPost, "/api/v1/allocations/hostel", body)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAllocateHotelHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("pairing code redeemed", func(t *testing.T) {
		service := new(mockAllocationService)
		partner := uuid.New()
		service.On("AllocateHotel", mock.Anything, mock.MatchedBy(func(req *models.HotelAllocationRequest) bool {
			return req.RoomTypeID == "04821"
		})).Return(&models.AllocationResult{Status: models.AllocationPaired, Paired: true, PairedWith: &partner}, nil)

		w := doJSON(t, setupAllocationRouter(userID, service), http.MethodPost, "/api/v1/allocations/hotel", hotelBody(userID, "04821"))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["paired"])
	})

	t.Run("pairing code rejected", func(t *testing.T) {
		service := new(mockAllocationService)
		service.On("AllocateHotel", mock.Anything, mock.Anything).Return(nil, models.ErrPairingCodeInvalid)

		w := doJSON(t, setupAllocationRouter(userID, service), http.MethodPost, "/api/v1/allocations/hotel", hotelBody(userID, "99999"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "pairing_code_invalid", decodeBody(t, w)["error"])
	})

	t.Run("malformed room type never reaches the service", func(t *testing.T) {
		service := new(mockAllocationService)

		w := doJSON(t, setupAllocationRouter(userID, service), http.MethodPost, "/api/v1/allocations/hotel", hotelBody(userID, "1234"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["fields"], "room_type_id")
		service.AssertNotCalled(t, "AllocateHotel", mock.Anything, mock.Anything)
	})
}

func TestListAllocationsHandler(t *testing.T) {
	userID := uuid.New()
	eventID := uuid.New()
	code := "04821"
	service := new(mockAllocationService)
	service.On("ListForUser", mock.Anything, userID, eventID).
		Return([]models.Allocation{{ID: uuid.New(), Kind: models.AccommodationHotel, Status: models.AllocationPaid, PairingCode: &code}}, nil)

	w := doJSON(t, setupAllocationRouter(userID, service), http.MethodGet, "/api/v1/allocations?event_id="+eventID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pairing_code":"04821"`)

	w = doJSON(t, setupAllocationRouter(userID, service), http.MethodGet, "/api/v1/allocations", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
