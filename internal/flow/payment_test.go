package flow

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRedirectURL     = "https://app.example.com/payment/return?source=booker"
	testNotificationURL = "https://api.example.com/api/v1/payments/webhook"
	testDashboardURL    = "https://app.example.com/dashboard"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestInitiator(api *fakeAPI, state *StateStore, nav Navigator) *Initiator {
	initiator := NewInitiator(api, state, nav, testRedirectURL, testNotificationURL, testLogger())
	n := 0
	initiator.newReference = func() string {
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
	return initiator
}

func checkoutOK(req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	return &models.CheckoutResponse{
		CheckoutURL: "https://pay.example.com/checkout/" + req.IdempotencyReference,
		Reference:   req.IdempotencyReference,
		Status:      models.PaymentStatusPending,
	}, nil
}

func registrationPayment() PaymentRequest {
	return PaymentRequest{
		Amount:  2500,
		UserID:  uuid.New(),
		EventID: uuid.New(),
		Kind:    PaymentKindRegistration,
	}
}

func TestInitiate_PersistsBeforeCallingOut(t *testing.T) {
	state, _ := newTestState(t)
	state.now = func() time.Time { return fixedNow }
	nav := &recordingNavigator{}
	req := registrationPayment()

	api := &fakeAPI{}
	api.checkoutFn = func(checkout *models.CheckoutRequest) (*models.CheckoutResponse, error) {
		pending := state.LoadPending(context.Background())
		require.Contains(t, pending, checkout.IdempotencyReference, "pending entry must exist before the call")
		flowState, ok := state.LoadFlow(context.Background())
		require.True(t, ok)
		assert.Equal(t, ViewCheckout, flowState.View)
		return checkoutOK(checkout)
	}

	redirect, err := newTestInitiator(api, state, nav).Initiate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, api.checkoutCalls, 1)
	sent := api.checkoutCalls[0]
	assert.Equal(t, redirect.Reference, sent.IdempotencyReference)
	assert.Equal(t, models.PaymentReasonRegistration, sent.Reason)
	assert.Equal(t, testNotificationURL, sent.NotificationURL)
	assert.Equal(t, req.Amount, sent.Amount)

	returnURL, err := url.Parse(sent.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, redirect.Reference, returnURL.Query().Get("ref"))
	assert.Equal(t, "booker", returnURL.Query().Get("source"))

	assert.Equal(t, []string{redirect.CheckoutURL}, nav.visited)
}

func TestInitiate_TwoAttemptsTwoEntries(t *testing.T) {
	state, _ := newTestState(t)
	api := &fakeAPI{checkoutFn: checkoutOK}
	initiator := newTestInitiator(api, state, &recordingNavigator{})
	req := registrationPayment()

	first, err := initiator.Initiate(context.Background(), req)
	require.NoError(t, err)
	second, err := initiator.Initiate(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.Reference, second.Reference)
	pending := state.LoadPending(context.Background())
	assert.Len(t, pending, 2)
	assert.Contains(t, pending, first.Reference)
	assert.Contains(t, pending, second.Reference)
}

func TestInitiate_FailureHandling(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		keepPending bool
	}{
		{"timeout is ambiguous", &apiclient.APIError{Code: apiclient.CodeTimeout}, true},
		{"network failure is ambiguous", &apiclient.APIError{Code: apiclient.CodeNetwork}, true},
		{"bad gateway is ambiguous", &apiclient.APIError{StatusCode: 502, Code: "gateway_error"}, true},
		{"bad request is a clear rejection", &apiclient.APIError{StatusCode: 400, Code: "invalid_request"}, false},
		{"reference conflict is a clear rejection", &apiclient.APIError{StatusCode: 409, Code: "reference_conflict"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, _ := newTestState(t)
			nav := &recordingNavigator{}
			api := &fakeAPI{checkoutFn: func(*models.CheckoutRequest) (*models.CheckoutResponse, error) {
				return nil, tt.err
			}}

			_, err := newTestInitiator(api, state, nav).Initiate(context.Background(), registrationPayment())
			require.ErrorIs(t, err, tt.err)
			assert.Empty(t, nav.visited)

			pending := state.LoadPending(context.Background())
			if tt.keepPending {
				assert.Len(t, pending, 1)
				return
			}
			assert.Empty(t, pending)
			flowState, ok := state.LoadFlow(context.Background())
			require.True(t, ok)
			assert.Equal(t, ViewPayment, flowState.View)
		})
	}
}

func TestInitiate_InvalidRequestMakesNoCall(t *testing.T) {
	state, _ := newTestState(t)
	api := &fakeAPI{}
	req := registrationPayment()
	req.Amount = 0

	_, err := newTestInitiator(api, state, &recordingNavigator{}).Initiate(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidPaymentRequest)
	assert.Empty(t, api.checkoutCalls)
	assert.Empty(t, state.LoadPending(context.Background()))

	req = registrationPayment()
	req.Kind = "donation"
	_, err = newTestInitiator(api, state, &recordingNavigator{}).Initiate(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidPaymentRequest)
}

func TestWithReference(t *testing.T) {
	got, err := withReference("https://app.example.com/return?ref=old&x=1", "new")
	require.NoError(t, err)
	u, _ := url.Parse(got)
	assert.Equal(t, "new", u.Query().Get("ref"))
	assert.Equal(t, "1", u.Query().Get("x"))

	_, err = withReference("/relative", "r")
	assert.Error(t, err)
}
