package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/events"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxPairingCodeAttempts bounds retries when a generated code collides
const maxPairingCodeAttempts = 5

// PaymentStore is the persistence the payment service needs
type PaymentStore interface {
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	Create(ctx context.Context, p *models.Payment) (bool, error)
	SetCheckout(ctx context.Context, id uuid.UUID, gatewayUID *string, checkoutURL string) error
	MarkFailed(ctx context.Context, reference string) (bool, error)
	Settle(ctx context.Context, reference string) (*models.Payment, []models.Allocation, bool, error)
}

// PairingCodeStore stores issued pairing codes
type PairingCodeStore interface {
	AssignPairingCode(ctx context.Context, allocationID uuid.UUID, code string) (bool, error)
}

// PaymentAuditor records payment events
type PaymentAuditor interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	CheckDuplicate(ctx context.Context, idempotencyKey string) (bool, error)
}

// WebhookOutcome summarises how a webhook was handled
type WebhookOutcome string

const (
	WebhookSettled          WebhookOutcome = "settled"
	WebhookAlreadySettled   WebhookOutcome = "already_settled"
	WebhookFailed           WebhookOutcome = "failed"
	WebhookDuplicate        WebhookOutcome = "duplicate"
	WebhookUnknownReference WebhookOutcome = "unknown_reference"
	WebhookAmountMismatch   WebhookOutcome = "amount_mismatch"
)

// PaymentService initiates checkouts and reconciles gateway webhooks.
// The webhook is the only path that marks payments and allocations paid.
type PaymentService struct {
	payments  PaymentStore
	pairing   PairingCodeStore
	audit     PaymentAuditor
	gateway   PaymentGateway
	publisher events.Publisher
	currency  string
	logger    *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	payments PaymentStore,
	pairing PairingCodeStore,
	audit PaymentAuditor,
	gateway PaymentGateway,
	publisher events.Publisher,
	currency string,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		pairing:   pairing,
		audit:     audit,
		gateway:   gateway,
		publisher: publisher,
		currency:  currency,
		logger:    logger,
	}
}

// ============================================================================
// CHECKOUT INITIATION
// ============================================================================

// InitiateCheckout creates (or returns) the checkout for an idempotency
// reference and returns the hosted payment page URL.
func (s *PaymentService) InitiateCheckout(ctx context.Context, userID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, models.ErrUserMismatch
	}

	payment, err := s.payments.GetByReference(ctx, req.IdempotencyReference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		payment = &models.Payment{
			Reference:       req.IdempotencyReference,
			UserID:          userID,
			EventID:         req.EventID,
			Amount:          req.Amount,
			Currency:        s.currency,
			Reason:          req.Reason,
			NotificationURL: req.NotificationURL,
			RedirectURL:     req.RedirectURL,
		}
		created, err := s.payments.Create(ctx, payment)
		if err != nil {
			return nil, err
		}
		if !created {
			// Lost an insert race with a retry of the same attempt
			payment, err = s.payments.GetByReference(ctx, req.IdempotencyReference)
			if err != nil {
				return nil, err
			}
			if payment == nil {
				return nil, fmt.Errorf("payment %s vanished after conflicting insert", req.IdempotencyReference)
			}
		}
	}

	if payment.UserID != userID || payment.EventID != req.EventID || payment.Amount != req.Amount {
		return nil, models.ErrReferenceConflict
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, models.ErrPaymentClosed
	}
	if payment.CheckoutURL != nil {
		return &models.CheckoutResponse{
			CheckoutURL: *payment.CheckoutURL,
			Reference:   payment.Reference,
			Status:      payment.Status,
		}, nil
	}

	logFields := logrus.Fields{
		"reference": payment.Reference,
		"user_id":   userID,
		"event_id":  payment.EventID,
		"amount":    payment.Amount,
	}

	var checkoutURL string
	var gatewayUID *string
	if s.gateway != nil && s.gateway.IsConfigured() {
		resp, err := s.gateway.InitiatePayment(ctx, &InitiatePaymentParams{
			InvoiceID:        payment.Reference,
			Amount:           payment.Amount,
			CurrencyCode:     payment.Currency,
			OrderDescription: fmt.Sprintf("Event accommodation - %s", payment.Reason),
			ReturnURL:        payment.RedirectURL,
			WebhookURL:       payment.NotificationURL,
		})
		if err != nil {
			s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventGatewayError, models.PaymentSourcePayableAPI).
				SetPayment(payment).
				SetError(err.Error()))
			s.logger.WithFields(logFields).WithError(err).Error("Checkout initiation failed")
			return nil, err
		}
		checkoutURL = resp.PaymentPage
		gatewayUID = &resp.UID
	} else {
		s.logger.Warn("PAYable service not configured - using placeholder checkout URL")
		checkoutURL = placeholderCheckoutURL(payment.RedirectURL)
	}

	if err := s.payments.SetCheckout(ctx, payment.ID, gatewayUID, checkoutURL); err != nil {
		return nil, err
	}

	s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetPayment(payment).
		SetDetails(map[string]interface{}{"reason": payment.Reason, "amount": payment.Amount}))

	s.logger.WithFields(logFields).Info("Checkout initiated")

	return &models.CheckoutResponse{
		CheckoutURL: checkoutURL,
		Reference:   payment.Reference,
		Status:      models.PaymentStatusPending,
	}, nil
}

// placeholderCheckoutURL sends the browser straight back to the return URL
// with a pending status hint. Only used when no gateway is configured.
func placeholderCheckoutURL(redirectURL string) string {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return redirectURL
	}
	q := u.Query()
	q.Set("payment_status", "pending")
	u.RawQuery = q.Encode()
	return u.String()
}

// GetStatus returns the server-side status of the caller's payment
func (s *PaymentService) GetStatus(ctx context.Context, userID uuid.UUID, reference string) (*models.PaymentStatusResponse, error) {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.UserID != userID {
		return nil, models.ErrPaymentNotFound
	}
	return &models.PaymentStatusResponse{
		Reference: payment.Reference,
		Status:    payment.Status,
		Amount:    payment.Amount,
		PaidAt:    payment.PaidAt,
	}, nil
}

// ============================================================================
// WEBHOOK RECONCILIATION
// ============================================================================

// HandleWebhook verifies, de-duplicates and applies a gateway notification.
// Errors are only returned for payloads that cannot be parsed or for
// storage failures; every other outcome is reported via WebhookOutcome.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, token, sourceIP string) (WebhookOutcome, error) {
	payload, err := s.gateway.VerifyWebhook(body, token)
	if err != nil {
		s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourcePayableWebhook).
			SetRawBody(string(body)).
			SetIP(sourceIP).
			SetError(err.Error()))
		return "", err
	}

	idempotencyKey := fmt.Sprintf("%s-%s", payload.UID, payload.PaymentStatus)
	duplicate, err := s.audit.CheckDuplicate(ctx, idempotencyKey)
	if err != nil {
		return "", err
	}

	received := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourcePayableWebhook).
		SetPaymentUID(payload.UID).
		SetPaymentReference(payload.InvoiceID).
		SetPaymentStatus(payload.PaymentStatus).
		SetRawBody(string(body)).
		SetIP(sourceIP).
		SetIdempotencyKey(idempotencyKey)
	if duplicate {
		s.logAudit(ctx, received.MarkAsDuplicate())
		s.logger.WithField("idempotency_key", idempotencyKey).Info("Duplicate webhook ignored")
		return WebhookDuplicate, nil
	}

	payment, err := s.payments.GetByReference(ctx, payload.InvoiceID)
	if err != nil {
		return "", err
	}
	if payment == nil {
		s.logAudit(ctx, received)
		s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventUnknownReference, models.PaymentSourcePayableWebhook).
			SetPaymentUID(payload.UID).
			SetPaymentReference(payload.InvoiceID))
		s.logger.WithField("reference", payload.InvoiceID).Warn("Webhook for unknown payment reference")
		return WebhookUnknownReference, nil
	}
	received.SetPayment(payment)

	receivedAmount, _ := strconv.ParseFloat(payload.Amount, 64)
	if !received.SetAmounts(payment.Amount, receivedAmount) {
		s.logAudit(ctx, received)
		mismatch := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourcePayableWebhook).
			SetPayment(payment)
		mismatch.SetAmounts(payment.Amount, receivedAmount)
		s.logAudit(ctx, mismatch)
		s.logger.WithFields(logrus.Fields{
			"reference": payment.Reference,
			"expected":  payment.Amount,
			"received":  receivedAmount,
		}).Error("Webhook amount does not match checkout amount")
		return WebhookAmountMismatch, nil
	}
	s.logAudit(ctx, received)

	if !s.gateway.IsPaymentSuccessful(payload) {
		if _, err := s.payments.MarkFailed(ctx, payment.Reference); err != nil {
			return "", err
		}
		s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventFailed, models.PaymentSourcePayableWebhook).
			SetPayment(payment).
			SetPaymentStatus(payload.PaymentStatus))
		s.logger.WithFields(logrus.Fields{
			"reference":      payment.Reference,
			"payment_status": payload.PaymentStatus,
		}).Info("Payment not successful")
		return WebhookFailed, nil
	}

	return s.settle(ctx, payment.Reference)
}

func (s *PaymentService) settle(ctx context.Context, reference string) (WebhookOutcome, error) {
	payment, allocations, settled, err := s.payments.Settle(ctx, reference)
	if err != nil {
		return "", err
	}
	if !settled {
		return WebhookAlreadySettled, nil
	}

	s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventSuccess, models.PaymentSourcePayableWebhook).
		SetPayment(payment))

	allocationIDs := make([]uuid.UUID, 0, len(allocations))
	pairingIssued := false
	for _, a := range allocations {
		allocationIDs = append(allocationIDs, a.ID)
		if a.Kind != models.AccommodationHotel {
			continue
		}
		code, err := s.issuePairingCode(ctx, a.ID)
		if err != nil {
			// The payment stands; the code can be issued again by support.
			s.logger.WithField("allocation_id", a.ID).WithError(err).Error("Failed to issue pairing code")
			continue
		}
		if code != "" {
			pairingIssued = true
			s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventPairingIssued, models.PaymentSourceBackend).
				SetPayment(payment).
				SetDetails(map[string]interface{}{"allocation_id": a.ID.String()}))
		}
	}
	if len(allocations) > 0 {
		s.logAudit(ctx, models.NewPaymentAudit(models.PaymentEventAllocationsPaid, models.PaymentSourceBackend).
			SetPayment(payment).
			SetDetails(map[string]interface{}{"allocations": len(allocations)}))
	}

	s.logger.WithFields(logrus.Fields{
		"reference":   payment.Reference,
		"user_id":     payment.UserID,
		"allocations": len(allocations),
	}).Info("Payment settled from webhook")

	event := models.PaymentConfirmedEvent{
		Reference:     payment.Reference,
		UserID:        payment.UserID,
		EventID:       payment.EventID,
		Amount:        payment.Amount,
		AllocationIDs: allocationIDs,
		PairingIssued: pairingIssued,
		ConfirmedAt:   time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.PaymentConfirmed, event); err != nil {
		s.logger.WithError(err).Warn("Failed to publish payment confirmed event")
	}

	return WebhookSettled, nil
}

// issuePairingCode returns the code stored on the allocation, or "" when the
// allocation already had one.
func (s *PaymentService) issuePairingCode(ctx context.Context, allocationID uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxPairingCodeAttempts; attempt++ {
		code, err := utils.GenerateNumericCode(models.PairingCodeLength)
		if err != nil {
			return "", err
		}
		assigned, err := s.pairing.AssignPairingCode(ctx, allocationID, code)
		if errors.Is(err, models.ErrDuplicatePairingCode) {
			continue
		}
		if err != nil {
			return "", err
		}
		if !assigned {
			return "", nil
		}
		return code, nil
	}
	return "", fmt.Errorf("no free pairing code after %d attempts", maxPairingCodeAttempts)
}

func (s *PaymentService) logAudit(ctx context.Context, audit *models.PaymentAudit) {
	if err := s.audit.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Error("Payment audit write failed")
	}
}
