package models

import "errors"

var (
	// ErrUnitTaken is returned when the compare-and-swap on a bed or room loses the race
	ErrUnitTaken = errors.New("unit already booked")

	// ErrUnitNotFound indicates the requested bed or room does not exist under the facility
	ErrUnitNotFound = errors.New("accommodation unit not found")

	// ErrFacilityNotFound indicates the facility does not exist for the event and kind
	ErrFacilityNotFound = errors.New("facility not found")

	// ErrPairingCodeInvalid covers unknown, unpaid and already consumed codes
	ErrPairingCodeInvalid = errors.New("pairing code is invalid or already used")

	// ErrDuplicatePairingCode is returned when a generated code collides with a live one
	ErrDuplicatePairingCode = errors.New("pairing code already in use")

	// ErrInvalidRoomType indicates a hotel allocation carried neither a room type nor a code
	ErrInvalidRoomType = errors.New("room type reference is invalid")

	// ErrPaymentNotFound indicates no checkout exists for a reference
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrUserMismatch indicates a request body names a different user than the token
	ErrUserMismatch = errors.New("user_id does not match the authenticated user")

	// ErrPaymentClosed indicates a checkout was requested for a reference that is no longer pending
	ErrPaymentClosed = errors.New("payment is no longer pending")

	// ErrReferenceConflict indicates a reference was reused for a different checkout
	ErrReferenceConflict = errors.New("idempotency reference already used for a different payment")
)
