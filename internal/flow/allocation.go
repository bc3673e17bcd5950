package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoBooking       = errors.New("allocation requires a booking")
	ErrMissingRoomType = errors.New("booking has no room type reference")
)

// Target selects which allocation call is made. It is closed to this package.
type Target interface {
	isTarget()
}

// HostelTarget binds a hostel facility to the registration
type HostelTarget struct{}

// HotelTarget uses the room-type reference from the Booking
type HotelTarget struct{}

// PairingTarget redeems a spouse's pairing code in the room-type slot
type PairingTarget struct {
	Code string
}

func (HostelTarget) isTarget()  {}
func (HotelTarget) isTarget()   {}
func (PairingTarget) isTarget() {}

// TargetFor returns the direct allocation target for a booking's kind
func TargetFor(kind models.AccommodationKind) Target {
	if kind == models.AccommodationHotel {
		return HotelTarget{}
	}
	return HostelTarget{}
}

// AllocationContext carries identity plus the Booking that allocation must use
type AllocationContext struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	UserID         uuid.UUID
	Booking        *models.Booking
}

// PartialFailureError means the unit is reserved but not linked to the
// registration. Booking is kept so allocation alone can be retried.
type PartialFailureError struct {
	Booking        *models.Booking
	RegistrationID uuid.UUID
	Err            error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("booking %s reserved but allocation failed: %v", e.Booking.ID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// Dispatcher calls the allocation endpoint for a target. It never retries.
type Dispatcher struct {
	api    AllocationAPI
	logger *logrus.Logger
}

// NewDispatcher creates an allocation dispatcher
func NewDispatcher(api AllocationAPI, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{api: api, logger: logger}
}

// Allocate links the booking's facility to the registration
func (d *Dispatcher) Allocate(ctx context.Context, actx AllocationContext, target Target) (*models.AllocationResult, error) {
	booking := actx.Booking
	if booking == nil {
		return nil, ErrNoBooking
	}

	var (
		result *models.AllocationResult
		err    error
	)

	switch t := target.(type) {
	case HostelTarget:
		if booking.Kind != models.AccommodationHostel {
			return nil, ErrWrongKind
		}
		result, err = d.api.AllocateHostel(ctx, &models.HostelAllocationRequest{
			RegistrationID: actx.RegistrationID,
			EventID:        actx.EventID,
			UserID:         actx.UserID,
			FacilityID:     booking.FacilityID,
		})
	case HotelTarget:
		if booking.Kind != models.AccommodationHotel {
			return nil, ErrWrongKind
		}
		if booking.RoomTypeID == nil {
			return nil, ErrMissingRoomType
		}
		result, err = d.api.AllocateHotel(ctx, d.hotelRequest(actx, booking.RoomTypeID.String()))
	case PairingTarget:
		if booking.Kind != models.AccommodationHotel {
			return nil, ErrWrongKind
		}
		code := strings.TrimSpace(t.Code)
		if err := validator.ValidatePairingCode(code); err != nil {
			return nil, err
		}
		result, err = d.api.AllocateHotel(ctx, d.hotelRequest(actx, code))
	default:
		return nil, fmt.Errorf("unsupported allocation target %T", target)
	}

	if err != nil {
		fields := logrus.Fields{
			"booking_id":      booking.ID,
			"registration_id": actx.RegistrationID,
			"facility_id":     booking.FacilityID,
			"target":          fmt.Sprintf("%T", target),
		}
		if _, pairing := target.(PairingTarget); pairing && isRejection(err) {
			d.logger.WithFields(fields).WithError(err).Warn("Pairing code rejected")
		} else {
			d.logger.WithFields(fields).WithError(err).Error("Reservation succeeded but allocation failed")
		}
		return nil, &PartialFailureError{Booking: booking, RegistrationID: actx.RegistrationID, Err: err}
	}

	d.logger.WithFields(logrus.Fields{
		"allocation_id": result.AllocationID,
		"booking_id":    booking.ID,
		"status":        result.Status,
	}).Info("Allocation created")
	return result, nil
}

func (d *Dispatcher) hotelRequest(actx AllocationContext, roomTypeSlot string) *models.HotelAllocationRequest {
	bookingID := actx.Booking.ID
	return &models.HotelAllocationRequest{
		RegistrationID: actx.RegistrationID,
		RoomTypeID:     roomTypeSlot,
		EventID:        actx.EventID,
		UserID:         actx.UserID,
		FacilityID:     actx.Booking.FacilityID,
		BookingID:      &bookingID,
	}
}

// isRejection reports a definite 4xx answer from the server
func isRejection(err error) bool {
	var apiErr *apiclient.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}
