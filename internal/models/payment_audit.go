package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated        PaymentEventType = "payment_initiated"
	PaymentEventGatewayError     PaymentEventType = "gateway_error"
	PaymentEventWebhookReceived  PaymentEventType = "webhook_received"
	PaymentEventSuccess          PaymentEventType = "payment_success"
	PaymentEventFailed           PaymentEventType = "payment_failed"
	PaymentEventExpired          PaymentEventType = "checkout_expired"
	PaymentEventAllocationsPaid  PaymentEventType = "allocations_paid"
	PaymentEventPairingIssued    PaymentEventType = "pairing_code_issued"
	PaymentEventAmountMismatch   PaymentEventType = "amount_mismatch"
	PaymentEventUnknownReference PaymentEventType = "unknown_reference"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend        PaymentEventSource = "backend"
	PaymentSourcePayableWebhook PaymentEventSource = "payable_webhook"
	PaymentSourcePayableAPI     PaymentEventSource = "payable_api"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	PaymentID        *uuid.UUID `json:"payment_id,omitempty" db:"payment_id"`
	PaymentUID       *string    `json:"payment_uid,omitempty" db:"payment_uid"`
	PaymentReference *string    `json:"payment_reference,omitempty" db:"payment_reference"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`
	RawBody       *string `json:"raw_body,omitempty" db:"raw_body"`
	Details       JSONB   `json:"details,omitempty" db:"details"`
	ErrorMessage  *string `json:"error_message,omitempty" db:"error_message"`

	IsDuplicate    bool    `json:"is_duplicate" db:"is_duplicate"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" db:"idempotency_key"`
	IPAddress      *string `json:"ip_address,omitempty" db:"ip_address"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetPayment links the audit to a stored payment
func (pa *PaymentAudit) SetPayment(p *Payment) *PaymentAudit {
	pa.PaymentID = &p.ID
	pa.PaymentReference = &p.Reference
	return pa
}

// SetPaymentUID sets the PAYable UID
func (pa *PaymentAudit) SetPaymentUID(uid string) *PaymentAudit {
	if uid != "" {
		pa.PaymentUID = &uid
	}
	return pa
}

// SetPaymentReference sets our invoice ID
func (pa *PaymentAudit) SetPaymentReference(ref string) *PaymentAudit {
	pa.PaymentReference = &ref
	return pa
}

// SetAmounts sets and verifies amounts - returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received

	const tolerance = 0.01
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus sets the payment status from gateway
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetRawBody stores the raw webhook body before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetDetails attaches free-form context
func (pa *PaymentAudit) SetDetails(details map[string]interface{}) *PaymentAudit {
	pa.Details = JSONB(details)
	return pa
}

// SetIP records the caller address
func (pa *PaymentAudit) SetIP(ip string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// SetIdempotencyKey sets the idempotency key
func (pa *PaymentAudit) SetIdempotencyKey(key string) *PaymentAudit {
	pa.IdempotencyKey = &key
	return pa
}
