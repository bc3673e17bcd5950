package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaymentConfig() *config.PaymentConfig {
	return &config.PaymentConfig{
		Environment:   "sandbox",
		MerchantKey:   "MK123",
		MerchantToken: "secret-token",
		Currency:      "LKR",
		ReturnURL:     "https://app.example.com/return",
		WebhookURL:    "https://api.example.com/webhook",
	}
}

func TestPAYableInitiatePayment(t *testing.T) {
	var received PAYablePaymentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(PAYablePaymentResponse{
			Status:      "PENDING",
			UID:         "uid-42",
			PaymentPage: "https://pay.example.com/p/42",
		})
	}))
	t.Cleanup(server.Close)

	svc := NewPAYableService(testPaymentConfig(), testLogger()).WithEndpoint(server.URL)
	resp, err := svc.InitiatePayment(context.Background(), &InitiatePaymentParams{
		InvoiceID:     "inv-1",
		Amount:        2500,
		CustomerName:  "Ama Perera",
		CustomerEmail: "ama@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/p/42", resp.PaymentPage)

	assert.Equal(t, "2500.00", received.Amount)
	assert.Equal(t, "LKR", received.CurrencyCode)
	assert.Equal(t, "https://app.example.com/return", received.ReturnURL)
	assert.Equal(t, "Ama", received.CustomerFirstName)
	assert.Equal(t, "Perera", received.CustomerLastName)
	assert.Equal(t, svc.GenerateCheckValue("inv-1", "2500.00", "LKR"), received.CheckValue)
}

func TestPAYableInitiatePayment_Rejected(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}))
		t.Cleanup(server.Close)

		svc := NewPAYableService(testPaymentConfig(), testLogger()).WithEndpoint(server.URL)
		_, err := svc.InitiatePayment(context.Background(), &InitiatePaymentParams{InvoiceID: "inv-2", Amount: 1})

		var gwErr *GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
		assert.Equal(t, "upstream down", gwErr.Message)
	})

	t.Run("error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error","message":"invalid checkValue"}`))
		}))
		t.Cleanup(server.Close)

		svc := NewPAYableService(testPaymentConfig(), testLogger()).WithEndpoint(server.URL)
		_, err := svc.InitiatePayment(context.Background(), &InitiatePaymentParams{InvoiceID: "inv-3", Amount: 1})

		var gwErr *GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, "invalid checkValue", gwErr.Message)
	})
}

func TestPAYableNotConfigured(t *testing.T) {
	svc := NewPAYableService(&config.PaymentConfig{}, testLogger())
	assert.False(t, svc.IsConfigured())

	_, err := svc.InitiatePayment(context.Background(), &InitiatePaymentParams{InvoiceID: "x", Amount: 1})
	assert.Error(t, err)
}

func TestPAYableUnknownEnvironmentFallsBackToSandbox(t *testing.T) {
	cfg := testPaymentConfig()
	cfg.Environment = "staging"
	svc := NewPAYableService(cfg, testLogger())
	assert.Equal(t, PAYableEnvironmentURLs["sandbox"], svc.endpoint)
}

func TestPAYableVerifyWebhook(t *testing.T) {
	svc := NewPAYableService(testPaymentConfig(), testLogger())

	payload, err := svc.VerifyWebhook([]byte(`{"uid":"u1","invoiceId":"inv-1","amount":"10.00","paymentStatus":"success"}`), "")
	require.NoError(t, err)
	assert.True(t, svc.IsPaymentSuccessful(payload))

	_, err = svc.VerifyWebhook([]byte(`{"uid":"u1"}`), "")
	assert.Error(t, err)

	_, err = svc.VerifyWebhook([]byte(`not json`), "")
	assert.Error(t, err)
}

func TestPAYableVerifyWebhook_Token(t *testing.T) {
	cfg := testPaymentConfig()
	cfg.WebhookSecret = "whsec-test"
	svc := NewPAYableService(cfg, testLogger())
	body := []byte(`{"uid":"u1","invoiceId":"inv-1","amount":"10.00","paymentStatus":"SUCCESS"}`)

	t.Run("issued token accepted", func(t *testing.T) {
		payload, err := svc.VerifyWebhook(body, svc.WebhookToken("inv-1"))
		require.NoError(t, err)
		assert.Equal(t, "inv-1", payload.InvoiceID)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		_, err := svc.VerifyWebhook(body, "")
		assert.ErrorIs(t, err, ErrWebhookSignature)
	})

	t.Run("token for another invoice rejected", func(t *testing.T) {
		_, err := svc.VerifyWebhook(body, svc.WebhookToken("inv-2"))
		assert.ErrorIs(t, err, ErrWebhookSignature)
	})
}

func TestPAYableInitiatePayment_SignsWebhookURL(t *testing.T) {
	var received PAYablePaymentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(PAYablePaymentResponse{Status: "PENDING", UID: "uid-1", PaymentPage: "https://pay.example.com/p/1"})
	}))
	t.Cleanup(server.Close)

	cfg := testPaymentConfig()
	cfg.WebhookSecret = "whsec-test"
	svc := NewPAYableService(cfg, testLogger()).WithEndpoint(server.URL)
	_, err := svc.InitiatePayment(context.Background(), &InitiatePaymentParams{InvoiceID: "inv-9", Amount: 10})
	require.NoError(t, err)

	u, err := url.Parse(received.WebhookURL)
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", u.Host)
	assert.Equal(t, svc.WebhookToken("inv-9"), u.Query().Get(WebhookTokenParam))
}

func TestGenerateCheckValue_Deterministic(t *testing.T) {
	svc := NewPAYableService(testPaymentConfig(), testLogger())
	a := svc.GenerateCheckValue("inv-1", "10.00", "LKR")
	b := svc.GenerateCheckValue("inv-1", "10.00", "LKR")
	c := svc.GenerateCheckValue("inv-1", "10.01", "LKR")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 128)
}

func TestSplitName(t *testing.T) {
	first, last := splitName("")
	assert.Equal(t, "Attendee", first)
	assert.Empty(t, last)

	first, last = splitName("Kasun  de Silva")
	assert.Equal(t, "Kasun", first)
	assert.Equal(t, "de Silva", last)
}
