package models

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the server-side status of a checkout
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentReason describes what a checkout pays for
type PaymentReason string

const (
	PaymentReasonRegistration PaymentReason = "registration"
	PaymentReasonDependents   PaymentReason = "dependents"
)

// Payment is one checkout attempt correlated by the client's idempotency reference
type Payment struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Reference       string        `json:"reference" db:"reference"`
	UserID          uuid.UUID     `json:"user_id" db:"user_id"`
	EventID         uuid.UUID     `json:"event_id" db:"event_id"`
	Amount          float64       `json:"amount" db:"amount"`
	Currency        string        `json:"currency" db:"currency"`
	Reason          PaymentReason `json:"reason" db:"reason"`
	Status          PaymentStatus `json:"status" db:"status"`
	CheckoutURL     *string       `json:"checkout_url,omitempty" db:"checkout_url"`
	GatewayUID      *string       `json:"-" db:"gateway_uid"`
	NotificationURL string        `json:"-" db:"notification_url"`
	RedirectURL     string        `json:"-" db:"redirect_url"`
	PaidAt          *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// CheckoutRequest is the body of POST /payments/checkout
type CheckoutRequest struct {
	Amount               float64       `json:"amount" binding:"required,gt=0"`
	UserID               uuid.UUID     `json:"user_id" binding:"required"`
	EventID              uuid.UUID     `json:"event_id" binding:"required"`
	IdempotencyReference string        `json:"idempotency_reference" binding:"required" validate:"uuid"`
	Reason               PaymentReason `json:"reason" binding:"required" validate:"oneof=registration dependents"`
	NotificationURL      string        `json:"notification_url" binding:"required,url"`
	RedirectURL          string        `json:"redirect_url" binding:"required,url"`
}

// Validate checks the fields binding tags cannot express
func (r *CheckoutRequest) Validate() error {
	if _, err := uuid.Parse(r.IdempotencyReference); err != nil {
		return fmt.Errorf("idempotency_reference must be a UUID")
	}
	if r.Reason != PaymentReasonRegistration && r.Reason != PaymentReasonDependents {
		return fmt.Errorf("invalid payment reason: %s", r.Reason)
	}
	u, err := url.Parse(r.RedirectURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("redirect_url must be absolute")
	}
	return nil
}

// CheckoutResponse is returned when a checkout is initiated
type CheckoutResponse struct {
	CheckoutURL string        `json:"checkout_url"`
	Reference   string        `json:"reference"`
	Status      PaymentStatus `json:"status"`
}

// PaymentStatusResponse is returned by GET /payments/:reference
type PaymentStatusResponse struct {
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
	Amount    float64       `json:"amount"`
	PaidAt    *time.Time    `json:"paid_at,omitempty"`
}

// PaymentConfirmedEvent is published once a webhook marks a payment paid
type PaymentConfirmedEvent struct {
	Reference     string      `json:"reference"`
	UserID        uuid.UUID   `json:"user_id"`
	EventID       uuid.UUID   `json:"event_id"`
	Amount        float64     `json:"amount"`
	AllocationIDs []uuid.UUID `json:"allocation_ids"`
	PairingIssued bool        `json:"pairing_issued"`
	ConfirmedAt   time.Time   `json:"confirmed_at"`
}

// AllocationPairedEvent is published when a pairing code is redeemed
type AllocationPairedEvent struct {
	AllocationID uuid.UUID `json:"allocation_id"`
	PairedWith   uuid.UUID `json:"paired_with"`
	EventID      uuid.UUID `json:"event_id"`
	UserID       uuid.UUID `json:"user_id"`
	PairedAt     time.Time `json:"paired_at"`
}
