package database

import (
	"context"
	"fmt"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, payment_id, payment_uid, payment_reference,
			event_type, event_source,
			expected_amount, received_amount, amounts_match,
			payment_status, raw_body, details, error_message,
			is_duplicate, idempotency_key, ip_address, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.PaymentID, audit.PaymentUID, audit.PaymentReference,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch,
		audit.PaymentStatus, audit.RawBody, audit.Details, audit.ErrorMessage,
		audit.IsDuplicate, audit.IdempotencyKey, audit.IPAddress, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":        audit.EventType,
			"payment_reference": audit.PaymentReference,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// CheckDuplicate checks if a webhook event has already been processed
func (r *PaymentAuditRepository) CheckDuplicate(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM payment_audits
		WHERE idempotency_key = $1
		AND event_type = $2
		AND is_duplicate = FALSE`

	err := r.db.GetContext(ctx, &count, query, idempotencyKey, models.PaymentEventWebhookReceived)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return count > 0, nil
}

// GetByReference retrieves all audit entries for a payment reference
func (r *PaymentAuditRepository) GetByReference(ctx context.Context, reference string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT id, payment_id, payment_uid, payment_reference, event_type, event_source,
		       expected_amount, received_amount, amounts_match, payment_status, raw_body,
		       details, error_message, is_duplicate, idempotency_key, ip_address, created_at
		FROM payment_audits
		WHERE payment_reference = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, reference); err != nil {
		return nil, fmt.Errorf("failed to get audits by reference: %w", err)
	}

	return audits, nil
}
