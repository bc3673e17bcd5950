package models

import (
	"time"

	"github.com/google/uuid"
)

// AllocationStatus represents the lifecycle of an allocation
type AllocationStatus string

const (
	AllocationPendingPayment AllocationStatus = "pending_payment"
	AllocationPaid           AllocationStatus = "paid"
	AllocationPaired         AllocationStatus = "paired"
	AllocationCancelled      AllocationStatus = "cancelled"
)

// PairingCodeLength is the number of digits in a pairing code
const PairingCodeLength = 5

// Allocation links a booking's facility to a registration
type Allocation struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	RegistrationID uuid.UUID         `json:"registration_id" db:"registration_id"`
	EventID        uuid.UUID         `json:"event_id" db:"event_id"`
	UserID         uuid.UUID         `json:"user_id" db:"user_id"`
	FacilityID     uuid.UUID         `json:"facility_id" db:"facility_id"`
	Kind           AccommodationKind `json:"kind" db:"kind"`
	RoomTypeID     *uuid.UUID        `json:"room_type_id,omitempty" db:"room_type_id"`
	Status         AllocationStatus  `json:"status" db:"status"`
	PairedWith     *uuid.UUID        `json:"paired_with,omitempty" db:"paired_with"`
	PairingCode    *string           `json:"pairing_code,omitempty" db:"pairing_code"`
	CodeConsumedAt *time.Time        `json:"-" db:"code_consumed_at"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// HostelAllocationRequest is the body of POST /allocations/hostel
type HostelAllocationRequest struct {
	RegistrationID uuid.UUID `json:"registration_id" binding:"required"`
	EventID        uuid.UUID `json:"event_id" binding:"required"`
	UserID         uuid.UUID `json:"user_id" binding:"required"`
	FacilityID     uuid.UUID `json:"facility_id" binding:"required"`
}

// HotelAllocationRequest is the body of POST /allocations/hotel.
// RoomTypeID carries either a room-type reference or a pairing code.
// BookingID names the caller's reserved room; a redeemed pairing code
// releases it since the couple shares the partner's room.
type HotelAllocationRequest struct {
	RegistrationID uuid.UUID  `json:"registration_id" binding:"required"`
	RoomTypeID     string     `json:"room_type_id" binding:"required" validate:"room_type_ref"`
	EventID        uuid.UUID  `json:"event_id" binding:"required"`
	UserID         uuid.UUID  `json:"user_id" binding:"required"`
	FacilityID     uuid.UUID  `json:"facility_id" binding:"required"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty"`
}

// AllocationResult is returned by both allocation endpoints
type AllocationResult struct {
	AllocationID uuid.UUID        `json:"allocation_id"`
	Status       AllocationStatus `json:"status"`
	FacilityID   uuid.UUID        `json:"facility_id"`
	RoomTypeID   *uuid.UUID       `json:"room_type_id,omitempty"`
	Paired       bool             `json:"paired"`
	PairedWith   *uuid.UUID       `json:"paired_with,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// ToResult converts an allocation to its API representation
func (a *Allocation) ToResult() *AllocationResult {
	return &AllocationResult{
		AllocationID: a.ID,
		Status:       a.Status,
		FacilityID:   a.FacilityID,
		RoomTypeID:   a.RoomTypeID,
		Paired:       a.Status == AllocationPaired,
		PairedWith:   a.PairedWith,
	}
}

// IsPairingCode reports whether s has the shape of a pairing code:
// exactly five ASCII digits.
func IsPairingCode(s string) bool {
	if len(s) != PairingCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
