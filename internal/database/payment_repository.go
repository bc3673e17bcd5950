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

// PaymentRepository handles checkout and settlement persistence
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, reference, user_id, event_id, amount, currency, reason, status,
	checkout_url, gateway_uid, notification_url, redirect_url, paid_at, created_at, updated_at`

// GetByReference retrieves a payment by its idempotency reference.
// Returns nil, nil when none exists.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// Create inserts a pending payment. Returns false when the reference already exists.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}

	query := `
		INSERT INTO payments (
			id, reference, user_id, event_id, amount, currency, reason, status,
			notification_url, redirect_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (reference) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query,
		p.ID, p.Reference, p.UserID, p.EventID, p.Amount, p.Currency, p.Reason, p.Status,
		p.NotificationURL, p.RedirectURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows > 0, nil
}

// SetCheckout stores the gateway transaction and checkout page for a payment
func (r *PaymentRepository) SetCheckout(ctx context.Context, id uuid.UUID, gatewayUID *string, checkoutURL string) error {
	query := `
		UPDATE payments
		SET gateway_uid = $2, checkout_url = $3, updated_at = NOW()
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, gatewayUID, checkoutURL); err != nil {
		return fmt.Errorf("failed to store checkout: %w", err)
	}
	return nil
}

// MarkFailed moves a pending payment to failed. Paid payments are never downgraded.
func (r *PaymentRepository) MarkFailed(ctx context.Context, reference string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'failed', updated_at = NOW()
		WHERE reference = $1 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, reference)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows > 0, nil
}

// ExpireStale moves checkouts still pending since before cutoff to failed and
// returns their references. A late webhook can still settle them.
func (r *PaymentRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		UPDATE payments
		SET status = 'failed', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
		RETURNING reference`
	var references []string
	if err := r.db.SelectContext(ctx, &references, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to expire stale payments: %w", err)
	}
	return references, nil
}

// Settle marks a payment paid and moves the payer's pending allocations for the
// same event to paid, atomically. Returns the settled allocations, or
// settled=false when the payment was already paid.
func (r *PaymentRepository) Settle(ctx context.Context, reference string) (payment *models.Payment, allocations []models.Allocation, settled bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var p models.Payment
	markPaid := `
		UPDATE payments
		SET status = 'paid', paid_at = NOW(), updated_at = NOW()
		WHERE reference = $1 AND status <> 'paid'
		RETURNING ` + paymentColumns
	err = tx.GetContext(ctx, &p, markPaid, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to mark payment paid: %w", err)
	}

	allocations = []models.Allocation{}
	settle := `
		UPDATE allocations
		SET status = 'paid', updated_at = NOW()
		WHERE user_id = $1 AND event_id = $2 AND status = ANY($3)
		RETURNING ` + allocationColumns
	pending := models.StatusArray{models.AllocationPendingPayment}
	if err := tx.SelectContext(ctx, &allocations, settle, p.UserID, p.EventID, pending); err != nil {
		return nil, nil, false, fmt.Errorf("failed to settle allocations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return &p, allocations, true, nil
}
