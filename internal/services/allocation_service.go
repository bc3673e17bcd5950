package services

import (
	"context"
	"fmt"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/events"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AllocationStore is the persistence the allocation service needs
type AllocationStore interface {
	Create(ctx context.Context, a *models.Allocation) error
	RedeemPairingCode(ctx context.Context, code string, redeemer *models.Allocation, releaseBooking *uuid.UUID) (*models.Allocation, error)
	ListByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) ([]models.Allocation, error)
}

// FacilityChecker confirms a facility exists for an event and kind
type FacilityChecker interface {
	FacilityExists(ctx context.Context, facilityID, eventID uuid.UUID, kind models.AccommodationKind) (bool, error)
}

// AllocationService binds reserved accommodation to registrations
type AllocationService struct {
	store      AllocationStore
	facilities FacilityChecker
	publisher  events.Publisher
	logger     *logrus.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(store AllocationStore, facilities FacilityChecker, publisher events.Publisher, logger *logrus.Logger) *AllocationService {
	return &AllocationService{
		store:      store,
		facilities: facilities,
		publisher:  publisher,
		logger:     logger,
	}
}

// AllocateHostel binds a hostel facility to a registration, pending payment
func (s *AllocationService) AllocateHostel(ctx context.Context, req *models.HostelAllocationRequest) (*models.AllocationResult, error) {
	if err := s.requireFacility(ctx, req.FacilityID, req.EventID, models.AccommodationHostel); err != nil {
		return nil, err
	}

	a := &models.Allocation{
		RegistrationID: req.RegistrationID,
		EventID:        req.EventID,
		UserID:         req.UserID,
		FacilityID:     req.FacilityID,
		Kind:           models.AccommodationHostel,
		Status:         models.AllocationPendingPayment,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"allocation_id":   a.ID,
		"registration_id": a.RegistrationID,
		"facility_id":     a.FacilityID,
	}).Info("Hostel allocation created")

	return a.ToResult(), nil
}

// AllocateHotel binds a hotel room type to a registration. When the room type
// slot holds a pairing code the redeemer is attached to the partner's paid
// allocation instead and no payment is due.
func (s *AllocationService) AllocateHotel(ctx context.Context, req *models.HotelAllocationRequest) (*models.AllocationResult, error) {
	base := &models.Allocation{
		RegistrationID: req.RegistrationID,
		EventID:        req.EventID,
		UserID:         req.UserID,
		FacilityID:     req.FacilityID,
		Kind:           models.AccommodationHotel,
	}

	if models.IsPairingCode(req.RoomTypeID) {
		return s.redeem(ctx, req.RoomTypeID, base, req.BookingID)
	}

	roomTypeID, err := uuid.Parse(req.RoomTypeID)
	if err != nil {
		return nil, models.ErrInvalidRoomType
	}
	if err := s.requireFacility(ctx, req.FacilityID, req.EventID, models.AccommodationHotel); err != nil {
		return nil, err
	}

	base.RoomTypeID = &roomTypeID
	base.Status = models.AllocationPendingPayment
	if err := s.store.Create(ctx, base); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"allocation_id":   base.ID,
		"registration_id": base.RegistrationID,
		"room_type_id":    roomTypeID,
	}).Info("Hotel allocation created")

	return base.ToResult(), nil
}

func (s *AllocationService) redeem(ctx context.Context, code string, redeemer *models.Allocation, bookingID *uuid.UUID) (*models.AllocationResult, error) {
	a, err := s.store.RedeemPairingCode(ctx, code, redeemer, bookingID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"registration_id": redeemer.RegistrationID,
			"event_id":        redeemer.EventID,
		}).WithError(err).Warn("Pairing code redemption rejected")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"allocation_id":    a.ID,
		"paired_with":      a.PairedWith,
		"released_booking": bookingID,
	}).Info("Pairing code redeemed")

	event := models.AllocationPairedEvent{
		AllocationID: a.ID,
		PairedWith:   *a.PairedWith,
		EventID:      a.EventID,
		UserID:       a.UserID,
		PairedAt:     time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.AllocationPaired, event); err != nil {
		s.logger.WithError(err).Warn("Failed to publish allocation paired event")
	}

	result := a.ToResult()
	result.Message = "Pairing confirmed. No payment is required."
	return result, nil
}

// ListForUser returns the caller's allocations for an event, including any
// pairing code they can share
func (s *AllocationService) ListForUser(ctx context.Context, userID, eventID uuid.UUID) ([]models.Allocation, error) {
	return s.store.ListByUserAndEvent(ctx, userID, eventID)
}

func (s *AllocationService) requireFacility(ctx context.Context, facilityID, eventID uuid.UUID, kind models.AccommodationKind) error {
	ok, err := s.facilities.FacilityExists(ctx, facilityID, eventID, kind)
	if err != nil {
		return fmt.Errorf("failed to verify facility: %w", err)
	}
	if !ok {
		return models.ErrFacilityNotFound
	}
	return nil
}
