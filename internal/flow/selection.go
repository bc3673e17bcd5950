package flow

import (
	"errors"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNoFacility          = errors.New("no facility selected")
	ErrUnknownOption       = errors.New("option is not part of the current catalog")
	ErrOptionDisabled      = errors.New("option has no remaining capacity")
	ErrWrongKind           = errors.New("selection step does not apply to this accommodation kind")
	ErrIncompleteSelection = errors.New("selection is incomplete")
)

// SelectionState is derived from the current selection, never stored
type SelectionState int

const (
	NoFacility SelectionState = iota
	FacilitySelected
	UnitSelected
)

func (s SelectionState) String() string {
	switch s {
	case NoFacility:
		return "no_facility"
	case FacilitySelected:
		return "facility_selected"
	case UnitSelected:
		return "unit_selected"
	}
	return "unknown"
}

// Selection is the client-owned cursor. RoomID and BedSpaceID always point
// into the facility named by FacilityID.
type Selection struct {
	FacilityID uuid.UUID
	RoomID     *uuid.UUID
	BedSpaceID *uuid.UUID
}

// OptionLevel says which step an Option belongs to
type OptionLevel string

const (
	LevelFacility OptionLevel = "facility"
	LevelRoom     OptionLevel = "room"
	LevelBed      OptionLevel = "bed"
)

// Option is one selectable row. Disabled options are listed so attendees
// can see what is sold out, but selecting one fails.
type Option struct {
	Level     OptionLevel
	ID        uuid.UUID
	ParentID  uuid.UUID
	Label     string
	Price     float64
	Remaining int
	Disabled  bool
	Selected  bool
}

// Selector is the selection state machine over one catalog snapshot
type Selector struct {
	kind       models.AccommodationKind
	facilities []models.Facility
	sel        Selection
}

// NewSelector starts in NoFacility
func NewSelector(kind models.AccommodationKind, facilities []models.Facility) *Selector {
	return &Selector{kind: kind, facilities: facilities}
}

// Kind returns the accommodation kind being selected
func (s *Selector) Kind() models.AccommodationKind {
	return s.kind
}

// Selection returns a copy of the current cursor
func (s *Selector) Selection() Selection {
	out := Selection{FacilityID: s.sel.FacilityID}
	if s.sel.RoomID != nil {
		id := *s.sel.RoomID
		out.RoomID = &id
	}
	if s.sel.BedSpaceID != nil {
		id := *s.sel.BedSpaceID
		out.BedSpaceID = &id
	}
	return out
}

// State derives the current state from the selection and kind
func (s *Selector) State() SelectionState {
	if s.sel.FacilityID == uuid.Nil {
		return NoFacility
	}
	if s.Ready() {
		return UnitSelected
	}
	return FacilitySelected
}

// Ready reports whether the kind-appropriate unit is chosen
func (s *Selector) Ready() bool {
	if s.sel.FacilityID == uuid.Nil {
		return false
	}
	if s.kind == models.AccommodationHotel {
		return s.sel.RoomID != nil
	}
	return s.sel.BedSpaceID != nil
}

// SelectFacility always clears room and bed, even when the same facility is picked again
func (s *Selector) SelectFacility(id uuid.UUID) error {
	f := s.facility(id)
	if f == nil {
		return ErrUnknownOption
	}
	if s.facilityRemaining(f) == 0 {
		return ErrOptionDisabled
	}
	s.sel = Selection{FacilityID: id}
	return nil
}

// SelectRoom picks a room of the selected facility and clears the bed
func (s *Selector) SelectRoom(id uuid.UUID) error {
	f := s.facility(s.sel.FacilityID)
	if f == nil {
		return ErrNoFacility
	}
	room := findRoom(f, id)
	if room == nil {
		return ErrUnknownOption
	}
	if room.RemainingCapacity(s.kind) == 0 {
		return ErrOptionDisabled
	}
	s.sel.RoomID = &id
	s.sel.BedSpaceID = nil
	return nil
}

// SelectBed picks a hostel bed of the selected facility. The room becomes
// the bed's parent.
func (s *Selector) SelectBed(id uuid.UUID) error {
	if s.kind != models.AccommodationHostel {
		return ErrWrongKind
	}
	f := s.facility(s.sel.FacilityID)
	if f == nil {
		return ErrNoFacility
	}
	for i := range f.Rooms {
		for _, bed := range f.Rooms[i].BedSpaces {
			if bed.ID != id {
				continue
			}
			if !bed.Available {
				return ErrOptionDisabled
			}
			roomID := f.Rooms[i].ID
			bedID := bed.ID
			s.sel.RoomID = &roomID
			s.sel.BedSpaceID = &bedID
			return nil
		}
	}
	return ErrUnknownOption
}

// ClearUnit drops room and bed but keeps the facility
func (s *Selector) ClearUnit() {
	s.sel.RoomID = nil
	s.sel.BedSpaceID = nil
}

// Reset returns to NoFacility
func (s *Selector) Reset() {
	s.sel = Selection{}
}

// Refresh swaps in a new catalog snapshot. The facility is kept if it is
// still listed. A unit is kept only if it is still listed and selectable.
func (s *Selector) Refresh(facilities []models.Facility) {
	s.facilities = facilities
	if s.sel.FacilityID == uuid.Nil {
		return
	}
	f := s.facility(s.sel.FacilityID)
	if f == nil {
		s.Reset()
		return
	}
	if s.sel.RoomID == nil {
		return
	}
	room := findRoom(f, *s.sel.RoomID)
	if room == nil {
		s.ClearUnit()
		return
	}
	if s.sel.BedSpaceID == nil {
		if room.RemainingCapacity(s.kind) == 0 {
			s.ClearUnit()
		}
		return
	}
	bed := findBed(room, *s.sel.BedSpaceID)
	if bed == nil || !bed.Available {
		s.ClearUnit()
	}
}

// Options lists facilities, then the rooms and (for hostels) beds of the
// selected facility
func (s *Selector) Options() []Option {
	var options []Option
	for i := range s.facilities {
		f := &s.facilities[i]
		remaining := s.facilityRemaining(f)
		options = append(options, Option{
			Level:     LevelFacility,
			ID:        f.ID,
			Label:     f.Name,
			Remaining: remaining,
			Disabled:  remaining == 0,
			Selected:  f.ID == s.sel.FacilityID,
		})
	}

	f := s.facility(s.sel.FacilityID)
	if f == nil {
		return options
	}
	for _, room := range f.Rooms {
		remaining := room.RemainingCapacity(s.kind)
		label := room.RoomNumber
		if room.RoomType != "" {
			label += " (" + room.RoomType + ")"
		}
		options = append(options, Option{
			Level:     LevelRoom,
			ID:        room.ID,
			ParentID:  f.ID,
			Label:     label,
			Price:     room.Price,
			Remaining: remaining,
			Disabled:  remaining == 0,
			Selected:  s.sel.RoomID != nil && *s.sel.RoomID == room.ID,
		})
		if s.kind != models.AccommodationHostel {
			continue
		}
		for _, bed := range room.BedSpaces {
			remaining := 0
			if bed.Available {
				remaining = 1
			}
			options = append(options, Option{
				Level:     LevelBed,
				ID:        bed.ID,
				ParentID:  room.ID,
				Label:     room.RoomNumber + "/" + bed.BedNumber,
				Price:     bed.Price,
				Remaining: remaining,
				Disabled:  !bed.Available,
				Selected:  s.sel.BedSpaceID != nil && *s.sel.BedSpaceID == bed.ID,
			})
		}
	}
	return options
}

// ReserveRequest builds the reservation body for the current selection
func (s *Selector) ReserveRequest(eventID uuid.UUID, pricing models.PricingCategory) (*models.ReserveRequest, error) {
	if !s.Ready() {
		return nil, ErrIncompleteSelection
	}
	sel := s.Selection()
	req := &models.ReserveRequest{
		EventID:         eventID,
		Kind:            s.kind,
		FacilityID:      sel.FacilityID,
		RoomID:          sel.RoomID,
		PricingCategory: pricing,
	}
	if s.kind == models.AccommodationHostel {
		req.BedSpaceID = sel.BedSpaceID
	}
	return req, nil
}

func (s *Selector) facility(id uuid.UUID) *models.Facility {
	if id == uuid.Nil {
		return nil
	}
	for i := range s.facilities {
		if s.facilities[i].ID == id {
			return &s.facilities[i]
		}
	}
	return nil
}

// facilityRemaining trusts the rooms over the server's advisory count when both exist
func (s *Selector) facilityRemaining(f *models.Facility) int {
	if len(f.Rooms) == 0 {
		return f.AvailableSpace
	}
	total := 0
	for _, r := range f.Rooms {
		total += r.RemainingCapacity(s.kind)
	}
	return total
}

func findRoom(f *models.Facility, id uuid.UUID) *models.Room {
	for i := range f.Rooms {
		if f.Rooms[i].ID == id {
			return &f.Rooms[i]
		}
	}
	return nil
}

func findBed(room *models.Room, id uuid.UUID) *models.BedSpace {
	for i := range room.BedSpaces {
		if room.BedSpaces[i].ID == id {
			return &room.BedSpaces[i]
		}
	}
	return nil
}
