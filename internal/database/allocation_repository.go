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
	"github.com/lib/pq"
)

// AllocationRepository handles allocation and pairing code operations
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository creates a new AllocationRepository
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

const allocationColumns = `
	id, registration_id, event_id, user_id, facility_id, kind, room_type_id,
	status, paired_with, pairing_code, code_consumed_at, created_at, updated_at`

// Create inserts a new allocation
func (r *AllocationRepository) Create(ctx context.Context, a *models.Allocation) error {
	return insertAllocation(ctx, r.db, a)
}

func insertAllocation(ctx context.Context, exec sqlx.ExecerContext, a *models.Allocation) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO allocations (
			id, registration_id, event_id, user_id, facility_id, kind, room_type_id,
			status, paired_with, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := exec.ExecContext(ctx, query,
		a.ID, a.RegistrationID, a.EventID, a.UserID, a.FacilityID, a.Kind, a.RoomTypeID,
		a.Status, a.PairedWith, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

// GetByID retrieves an allocation by ID
func (r *AllocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Allocation, error) {
	var a models.Allocation
	err := r.db.GetContext(ctx, &a, `SELECT `+allocationColumns+` FROM allocations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}
	return &a, nil
}

// RedeemPairingCode consumes a live pairing code of a paid hotel allocation
// and inserts the redeemer's allocation attached to it, in one transaction.
// The redeemer inherits the partner's facility and room type. When
// releaseBooking is set, the redeemer's own hotel booking is deleted and its
// room made available again in the same transaction.
func (r *AllocationRepository) RedeemPairingCode(ctx context.Context, code string, redeemer *models.Allocation, releaseBooking *uuid.UUID) (*models.Allocation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var partner struct {
		ID         uuid.UUID  `db:"id"`
		FacilityID uuid.UUID  `db:"facility_id"`
		RoomTypeID *uuid.UUID `db:"room_type_id"`
	}
	consume := `
		UPDATE allocations
		SET code_consumed_at = NOW(), updated_at = NOW()
		WHERE pairing_code = $1
		  AND event_id = $2
		  AND kind = 'HOTEL'
		  AND status = 'paid'
		  AND code_consumed_at IS NULL
		  AND user_id <> $3
		RETURNING id, facility_id, room_type_id`
	err = tx.GetContext(ctx, &partner, consume, code, redeemer.EventID, redeemer.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPairingCodeInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume pairing code: %w", err)
	}

	redeemer.Kind = models.AccommodationHotel
	redeemer.FacilityID = partner.FacilityID
	redeemer.RoomTypeID = partner.RoomTypeID
	redeemer.Status = models.AllocationPaired
	redeemer.PairedWith = &partner.ID

	if err := insertAllocation(ctx, tx, redeemer); err != nil {
		return nil, err
	}

	if releaseBooking != nil {
		if err := releaseHotelBooking(ctx, tx, *releaseBooking, redeemer.UserID, redeemer.EventID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pairing: %w", err)
	}
	return redeemer, nil
}

// releaseHotelBooking drops a user's hotel booking and frees its room.
// A booking that is gone or belongs to someone else is left alone.
func releaseHotelBooking(ctx context.Context, tx *sqlx.Tx, bookingID, userID, eventID uuid.UUID) error {
	var roomID uuid.UUID
	err := tx.GetContext(ctx, &roomID, `
		DELETE FROM bookings
		WHERE id = $1 AND user_id = $2 AND event_id = $3 AND kind = 'HOTEL'
		RETURNING room_id`, bookingID, userID, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release booking: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rooms
		SET available = TRUE, version = version + 1, updated_at = NOW()
		WHERE id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("failed to release room: %w", err)
	}
	return nil
}

// AssignPairingCode stores a code on a paid hotel allocation that has none yet.
// Returns false when the allocation already carries a code.
func (r *AllocationRepository) AssignPairingCode(ctx context.Context, allocationID uuid.UUID, code string) (bool, error) {
	query := `
		UPDATE allocations
		SET pairing_code = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'paid' AND kind = 'HOTEL' AND pairing_code IS NULL`
	result, err := r.db.ExecContext(ctx, query, allocationID, code)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return false, models.ErrDuplicatePairingCode
		}
		return false, fmt.Errorf("failed to assign pairing code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListByUserAndEvent returns a registrant's allocations for an event, newest first
func (r *AllocationRepository) ListByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) ([]models.Allocation, error) {
	allocations := []models.Allocation{}
	query := `SELECT ` + allocationColumns + `
		FROM allocations
		WHERE user_id = $1 AND event_id = $2
		ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &allocations, query, userID, eventID); err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	return allocations, nil
}
