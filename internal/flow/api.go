package flow

import (
	"context"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
)

// CatalogAPI reads availability
type CatalogAPI interface {
	GetCatalog(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) (*models.CatalogResponse, error)
}

// ReserveAPI claims a unit
type ReserveAPI interface {
	Reserve(ctx context.Context, req *models.ReserveRequest) (*models.Booking, error)
}

// AllocationAPI links a booking to a registration
type AllocationAPI interface {
	AllocateHostel(ctx context.Context, req *models.HostelAllocationRequest) (*models.AllocationResult, error)
	AllocateHotel(ctx context.Context, req *models.HotelAllocationRequest) (*models.AllocationResult, error)
}

// CheckoutAPI opens a hosted checkout
type CheckoutAPI interface {
	InitiateCheckout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
}

// API is everything a booking session needs from the server
type API interface {
	CatalogAPI
	ReserveAPI
	AllocationAPI
	CheckoutAPI
}
