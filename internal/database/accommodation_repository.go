package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AccommodationRepository handles facility, room, bed space and booking operations
type AccommodationRepository struct {
	db *sqlx.DB
}

// NewAccommodationRepository creates a new AccommodationRepository
func NewAccommodationRepository(db *sqlx.DB) *AccommodationRepository {
	return &AccommodationRepository{db: db}
}

// ============================================================================
// CATALOG READ
// ============================================================================

// ListFacilities returns the facilities of an event and kind with nested rooms
// and, for hostels, bed spaces. Returns an empty slice when nothing matches.
func (r *AccommodationRepository) ListFacilities(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) ([]models.Facility, error) {
	facilities := []models.Facility{}
	query := `
		SELECT id, event_id, kind, name, capacity
		FROM facilities
		WHERE event_id = $1 AND kind = $2
		ORDER BY name`
	if err := r.db.SelectContext(ctx, &facilities, query, eventID, kind); err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	if len(facilities) == 0 {
		return facilities, nil
	}

	facilityIDs := make([]string, len(facilities))
	for i, f := range facilities {
		facilityIDs[i] = f.ID.String()
	}

	roomQuery, args, err := sqlx.In(`
		SELECT id, facility_id, room_number, room_type, room_type_id, capacity, price, available
		FROM rooms
		WHERE facility_id IN (?)
		ORDER BY room_number`, facilityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build room query: %w", err)
	}
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, r.db.Rebind(roomQuery), args...); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	bedsByRoom := map[uuid.UUID][]models.BedSpace{}
	if kind == models.AccommodationHostel && len(rooms) > 0 {
		roomIDs := make([]string, len(rooms))
		for i, rm := range rooms {
			roomIDs[i] = rm.ID.String()
		}
		bedQuery, args, err := sqlx.In(`
			SELECT id, room_id, bed_number, price, available
			FROM bed_spaces
			WHERE room_id IN (?)
			ORDER BY bed_number`, roomIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to build bed query: %w", err)
		}
		var beds []models.BedSpace
		if err := r.db.SelectContext(ctx, &beds, r.db.Rebind(bedQuery), args...); err != nil {
			return nil, fmt.Errorf("failed to list bed spaces: %w", err)
		}
		for _, b := range beds {
			bedsByRoom[b.RoomID] = append(bedsByRoom[b.RoomID], b)
		}
	}

	roomsByFacility := map[uuid.UUID][]models.Room{}
	for _, rm := range rooms {
		rm.BedSpaces = bedsByRoom[rm.ID]
		roomsByFacility[rm.FacilityID] = append(roomsByFacility[rm.FacilityID], rm)
	}
	for i := range facilities {
		facilities[i].Rooms = roomsByFacility[facilities[i].ID]
		if facilities[i].Rooms == nil {
			facilities[i].Rooms = []models.Room{}
		}
		facilities[i].ComputeAvailableSpace()
	}

	return facilities, nil
}

// ============================================================================
// RESERVATION (compare-and-swap on the unit's available flag)
// ============================================================================

// unitDetails is the resolved view of a reserved unit used to build a Booking
type unitDetails struct {
	FacilityID   uuid.UUID  `db:"facility_id"`
	FacilityName string     `db:"facility_name"`
	RoomID       uuid.UUID  `db:"room_id"`
	RoomNumber   string     `db:"room_number"`
	RoomTypeID   *uuid.UUID `db:"room_type_id"`
	BedNumber    *string    `db:"bed_number"`
	Price        float64    `db:"price"`
}

type reserveQueries struct {
	swap    string
	exists  string
	details string
}

var hostelReserveQueries = reserveQueries{
	swap: `
		UPDATE bed_spaces b
		SET available = FALSE, version = b.version + 1, updated_at = NOW()
		FROM rooms r, facilities f
		WHERE b.id = $1 AND b.room_id = r.id AND r.facility_id = f.id
		  AND f.id = $2 AND f.event_id = $3 AND f.kind = 'HOSTEL'
		  AND b.available = TRUE`,
	exists: `
		SELECT EXISTS (
			SELECT 1 FROM bed_spaces b
			JOIN rooms r ON r.id = b.room_id
			JOIN facilities f ON f.id = r.facility_id
			WHERE b.id = $1 AND f.id = $2 AND f.event_id = $3
		)`,
	details: `
		SELECT f.id AS facility_id, f.name AS facility_name,
		       r.id AS room_id, r.room_number, r.room_type_id,
		       b.bed_number, COALESCE(ur.price, b.price) AS price
		FROM bed_spaces b
		JOIN rooms r ON r.id = b.room_id
		JOIN facilities f ON f.id = r.facility_id
		LEFT JOIN unit_rates ur ON ur.facility_id = f.id AND ur.pricing_category = $2
		WHERE b.id = $1`,
}

var hotelReserveQueries = reserveQueries{
	swap: `
		UPDATE rooms r
		SET available = FALSE, version = r.version + 1, updated_at = NOW()
		FROM facilities f
		WHERE r.id = $1 AND r.facility_id = f.id
		  AND f.id = $2 AND f.event_id = $3 AND f.kind = 'HOTEL'
		  AND r.available = TRUE`,
	exists: `
		SELECT EXISTS (
			SELECT 1 FROM rooms r
			JOIN facilities f ON f.id = r.facility_id
			WHERE r.id = $1 AND f.id = $2 AND f.event_id = $3
		)`,
	details: `
		SELECT f.id AS facility_id, f.name AS facility_name,
		       r.id AS room_id, r.room_number, r.room_type_id,
		       NULL AS bed_number, COALESCE(ur.price, r.price) AS price
		FROM rooms r
		JOIN facilities f ON f.id = r.facility_id
		LEFT JOIN unit_rates ur ON ur.facility_id = f.id AND ur.pricing_category = $2
		WHERE r.id = $1`,
}

// Reserve atomically flips the requested unit from available to taken and
// records a booking. Returns models.ErrUnitTaken when another caller won the
// race and models.ErrUnitNotFound when the unit is not under the facility.
func (r *AccommodationRepository) Reserve(ctx context.Context, req *models.ReserveRequest, userID uuid.UUID) (*models.Booking, error) {
	q := hostelReserveQueries
	unitID := req.BedSpaceID
	if req.Kind == models.AccommodationHotel {
		q = hotelReserveQueries
		unitID = req.RoomID
	}
	if unitID == nil {
		return nil, models.ErrUnitNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, q.swap, *unitID, req.FacilityID, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve unit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, q.exists, *unitID, req.FacilityID, req.EventID); err != nil {
			return nil, fmt.Errorf("failed to check unit: %w", err)
		}
		if exists {
			return nil, models.ErrUnitTaken
		}
		return nil, models.ErrUnitNotFound
	}

	var unit unitDetails
	if err := tx.GetContext(ctx, &unit, q.details, *unitID, req.PricingCategory); err != nil {
		return nil, fmt.Errorf("failed to load reserved unit: %w", err)
	}

	booking := &models.Booking{
		ID:              uuid.New(),
		EventID:         req.EventID,
		UserID:          userID,
		Kind:            req.Kind,
		FacilityID:      unit.FacilityID,
		FacilityName:    unit.FacilityName,
		RoomID:          unit.RoomID,
		RoomNumber:      unit.RoomNumber,
		BedNumber:       unit.BedNumber,
		RoomTypeID:      unit.RoomTypeID,
		PricingCategory: req.PricingCategory,
		Price:           unit.Price,
		CreatedAt:       time.Now(),
	}
	if req.Kind == models.AccommodationHostel {
		booking.BedSpaceID = req.BedSpaceID
	}

	insert := `
		INSERT INTO bookings (
			id, event_id, user_id, kind, facility_id, facility_name,
			room_id, room_number, bed_space_id, bed_number, room_type_id,
			pricing_category, price, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := tx.ExecContext(ctx, insert,
		booking.ID, booking.EventID, booking.UserID, booking.Kind, booking.FacilityID, booking.FacilityName,
		booking.RoomID, booking.RoomNumber, booking.BedSpaceID, booking.BedNumber, booking.RoomTypeID,
		booking.PricingCategory, booking.Price, booking.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	return booking, nil
}

// GetBooking retrieves a booking by ID
func (r *AccommodationRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `
		SELECT id, event_id, user_id, kind, facility_id, facility_name,
		       room_id, room_number, bed_space_id, bed_number, room_type_id,
		       pricing_category, price, created_at
		FROM bookings
		WHERE id = $1`
	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// FacilityExists checks that a facility belongs to the event and kind
func (r *AccommodationRepository) FacilityExists(ctx context.Context, facilityID, eventID uuid.UUID, kind models.AccommodationKind) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM facilities WHERE id = $1 AND event_id = $2 AND kind = $3)`
	if err := r.db.GetContext(ctx, &exists, query, facilityID, eventID, kind); err != nil {
		return false, fmt.Errorf("failed to check facility: %w", err)
	}
	return exists, nil
}
