package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidPaymentRequest is returned before any state is written or call made
var ErrInvalidPaymentRequest = errors.New("invalid payment request")

// PaymentRequest is one logical checkout
type PaymentRequest struct {
	Amount    float64     `json:"amount" validate:"gt=0"`
	UserID    uuid.UUID   `json:"user_id" validate:"required"`
	EventID   uuid.UUID   `json:"event_id" validate:"required"`
	Kind      PaymentKind `json:"kind" validate:"oneof=registration dependents"`
	TargetIDs []uuid.UUID `json:"target_ids"`
}

// Redirect is where the browser must go next
type Redirect struct {
	Reference   string
	CheckoutURL string
}

// Navigator performs the full navigation to checkout. Nothing after a
// successful Navigate is guaranteed to run.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Initiator starts checkouts. Every attempt gets its own reference and its
// own pending entry, written before the API is called.
type Initiator struct {
	api             CheckoutAPI
	state           *StateStore
	navigator       Navigator
	redirectURL     string
	notificationURL string
	newReference    func() string
	logger          *logrus.Logger
}

// NewInitiator creates a payment initiator
func NewInitiator(api CheckoutAPI, state *StateStore, navigator Navigator, redirectURL, notificationURL string, logger *logrus.Logger) *Initiator {
	return &Initiator{
		api:             api,
		state:           state,
		navigator:       navigator,
		redirectURL:     redirectURL,
		notificationURL: notificationURL,
		newReference:    uuid.NewString,
		logger:          logger,
	}
}

// Initiate persists the attempt, opens a checkout and navigates to it
func (i *Initiator) Initiate(ctx context.Context, req PaymentRequest) (*Redirect, error) {
	if fields := validator.Validate(&req); fields != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPaymentRequest, fields)
	}

	reference := i.newReference()
	redirectURL, err := withReference(i.redirectURL, reference)
	if err != nil {
		return nil, err
	}

	if err := i.state.AddPending(ctx, PendingPayment{
		Reference: reference,
		Kind:      req.Kind,
		TargetIDs: req.TargetIDs,
		Amount:    req.Amount,
		EventID:   req.EventID,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist pending payment: %w", err)
	}
	if err := i.state.SaveFlow(ctx, FlowState{
		View:          ViewCheckout,
		EventID:       req.EventID,
		PaymentStatus: HintPending,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist flow state: %w", err)
	}

	log := i.logger.WithFields(logrus.Fields{
		"reference": reference,
		"event_id":  req.EventID,
		"kind":      req.Kind,
	})

	resp, err := i.api.InitiateCheckout(ctx, &models.CheckoutRequest{
		Amount:               req.Amount,
		UserID:               req.UserID,
		EventID:              req.EventID,
		IdempotencyReference: reference,
		Reason:               models.PaymentReason(req.Kind),
		NotificationURL:      i.notificationURL,
		RedirectURL:          redirectURL,
	})
	if err != nil {
		i.abandon(ctx, log, reference, req.EventID, err)
		return nil, err
	}

	log.Info("Checkout opened, navigating away")
	if err := i.navigator.Navigate(ctx, resp.CheckoutURL); err != nil {
		return nil, fmt.Errorf("failed to open checkout: %w", err)
	}
	return &Redirect{Reference: reference, CheckoutURL: resp.CheckoutURL}, nil
}

// abandon keeps the pending entry only when the server may have seen the request
func (i *Initiator) abandon(ctx context.Context, log *logrus.Entry, reference string, eventID uuid.UUID, cause error) {
	var apiErr *apiclient.APIError
	if errors.As(cause, &apiErr) && apiErr.Ambiguous() {
		log.WithError(cause).Warn("Checkout outcome unknown, keeping pending payment")
		return
	}

	log.WithError(cause).Warn("Checkout rejected, dropping pending payment")
	if err := i.state.RemovePending(ctx, reference); err != nil {
		log.WithError(err).Warn("Failed to drop pending payment")
	}
	if err := i.state.SaveFlow(ctx, FlowState{View: ViewPayment, EventID: eventID}); err != nil {
		log.WithError(err).Warn("Failed to restore flow state")
	}
}

// withReference adds ref=<reference> to the return URL, keeping its other parameters
func withReference(rawURL, reference string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid redirect url %q", rawURL)
	}
	q := u.Query()
	q.Set("ref", reference)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
