package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccommodationKind represents the category of a bookable facility
type AccommodationKind string

const (
	AccommodationHostel AccommodationKind = "HOSTEL"
	AccommodationHotel  AccommodationKind = "HOTEL"
)

// ParseAccommodationKind accepts either case and returns the canonical kind
func ParseAccommodationKind(s string) (AccommodationKind, error) {
	switch AccommodationKind(strings.ToUpper(strings.TrimSpace(s))) {
	case AccommodationHostel:
		return AccommodationHostel, nil
	case AccommodationHotel:
		return AccommodationHotel, nil
	}
	return "", fmt.Errorf("invalid accommodation kind: %q (must be HOSTEL or HOTEL)", s)
}

// PricingCategory selects the rate applied to a reserved unit
type PricingCategory string

const (
	PricingStandard PricingCategory = "standard"
	PricingStudent  PricingCategory = "student"
	PricingSponsor  PricingCategory = "sponsored"
)

// IsValid reports whether the category is one the catalog prices
func (p PricingCategory) IsValid() bool {
	switch p {
	case PricingStandard, PricingStudent, PricingSponsor:
		return true
	}
	return false
}

// Facility is a bookable hostel hall or hotel building within an event.
// AvailableSpace is computed at read time and is only a hint.
type Facility struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	EventID        uuid.UUID         `json:"event_id" db:"event_id"`
	Kind           AccommodationKind `json:"kind" db:"kind"`
	Name           string            `json:"name" db:"name"`
	Capacity       int               `json:"capacity" db:"capacity"`
	AvailableSpace int               `json:"available_space" db:"-"`
	Rooms          []Room            `json:"rooms"`
}

// Room belongs to exactly one facility. For hotels the room is the unit
// that gets reserved; for hostels its bed spaces are.
type Room struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	FacilityID uuid.UUID  `json:"facility_id" db:"facility_id"`
	RoomNumber string     `json:"room_number" db:"room_number"`
	RoomType   string     `json:"room_type" db:"room_type"`
	RoomTypeID *uuid.UUID `json:"room_type_id,omitempty" db:"room_type_id"`
	Capacity   int        `json:"capacity" db:"capacity"`
	Price      float64    `json:"price" db:"price"`
	Available  bool       `json:"available" db:"available"`
	BedSpaces  []BedSpace `json:"bed_spaces,omitempty"`
}

// BedSpace is the smallest allocatable unit within a hostel room
type BedSpace struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RoomID    uuid.UUID `json:"room_id" db:"room_id"`
	BedNumber string    `json:"bed_number" db:"bed_number"`
	Price     float64   `json:"price" db:"price"`
	Available bool      `json:"available" db:"available"`
}

// RemainingCapacity returns how many units are still free in the room
func (r Room) RemainingCapacity(kind AccommodationKind) int {
	if kind == AccommodationHotel {
		if r.Available {
			return 1
		}
		return 0
	}
	n := 0
	for _, b := range r.BedSpaces {
		if b.Available {
			n++
		}
	}
	return n
}

// ComputeAvailableSpace sums the remaining capacity across the facility's rooms
func (f *Facility) ComputeAvailableSpace() {
	total := 0
	for _, r := range f.Rooms {
		total += r.RemainingCapacity(f.Kind)
	}
	f.AvailableSpace = total
}

// Booking is a successful reservation of one room or bed space. The
// resolved identifiers, names and price are authoritative.
type Booking struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	EventID         uuid.UUID         `json:"event_id" db:"event_id"`
	UserID          uuid.UUID         `json:"user_id" db:"user_id"`
	Kind            AccommodationKind `json:"kind" db:"kind"`
	FacilityID      uuid.UUID         `json:"facility_id" db:"facility_id"`
	FacilityName    string            `json:"facility_name" db:"facility_name"`
	RoomID          uuid.UUID         `json:"room_id" db:"room_id"`
	RoomNumber      string            `json:"room_number" db:"room_number"`
	BedSpaceID      *uuid.UUID        `json:"bed_space_id,omitempty" db:"bed_space_id"`
	BedNumber       *string           `json:"bed_number,omitempty" db:"bed_number"`
	RoomTypeID      *uuid.UUID        `json:"room_type_id,omitempty" db:"room_type_id"`
	PricingCategory PricingCategory   `json:"pricing_category" db:"pricing_category"`
	Price           float64           `json:"price" db:"price"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// ReserveRequest is the body of POST /accommodations/reserve
type ReserveRequest struct {
	EventID         uuid.UUID         `json:"event_id" binding:"required"`
	Kind            AccommodationKind `json:"kind" binding:"required"`
	FacilityID      uuid.UUID         `json:"facility_id" binding:"required"`
	RoomID          *uuid.UUID        `json:"room_id,omitempty"`
	BedSpaceID      *uuid.UUID        `json:"bed_space_id,omitempty"`
	PricingCategory PricingCategory   `json:"pricing_category"`
}

// Validate checks the kind-specific shape of a reservation request
func (r *ReserveRequest) Validate() error {
	kind, err := ParseAccommodationKind(string(r.Kind))
	if err != nil {
		return err
	}
	r.Kind = kind
	if r.PricingCategory == "" {
		r.PricingCategory = PricingStandard
	}
	if !r.PricingCategory.IsValid() {
		return fmt.Errorf("invalid pricing category: %s", r.PricingCategory)
	}

	switch r.Kind {
	case AccommodationHostel:
		if r.BedSpaceID == nil {
			return fmt.Errorf("bed_space_id is required for hostel reservations")
		}
	case AccommodationHotel:
		if r.RoomID == nil {
			return fmt.Errorf("room_id is required for hotel reservations")
		}
		if r.BedSpaceID != nil {
			return fmt.Errorf("bed_space_id is not allowed for hotel reservations")
		}
	}
	return nil
}

// CatalogResponse wraps the facilities returned by the catalog read
type CatalogResponse struct {
	EventID    uuid.UUID         `json:"event_id"`
	Kind       AccommodationKind `json:"kind"`
	Facilities []Facility        `json:"facilities"`
}
