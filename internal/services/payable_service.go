package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// PAYableEnvironmentURLs maps environment names to their IPG endpoint URLs
var PAYableEnvironmentURLs = map[string]string{
	"dev":        "https://payable-ipg-dev.web.app/ipg/dev",
	"sandbox":    "https://sandboxipgpayment.payable.lk/ipg/sandbox",
	"production": "https://ipgpayment.payable.lk/ipg/pro",
}

// PaymentGateway is the hosted checkout provider
type PaymentGateway interface {
	IsConfigured() bool
	InitiatePayment(ctx context.Context, params *InitiatePaymentParams) (*PAYablePaymentResponse, error)
	VerifyWebhook(body []byte, token string) (*PAYableWebhookPayload, error)
	IsPaymentSuccessful(payload *PAYableWebhookPayload) bool
}

// PAYableService handles payment gateway integration with PAYable IPG
type PAYableService struct {
	config   *config.PaymentConfig
	logger   *logrus.Logger
	client   *http.Client
	endpoint string
}

// PAYablePaymentRequest represents the request sent to PAYable IPG.
// The merchant token is never sent; it only feeds the check value.
type PAYablePaymentRequest struct {
	MerchantKey string `json:"merchantKey"`

	LogoURL    string `json:"logoUrl,omitempty"`
	ReturnURL  string `json:"returnUrl"`
	WebhookURL string `json:"webhookUrl,omitempty"`

	PaymentType  int    `json:"paymentType"` // 1 = one-time
	InvoiceID    string `json:"invoiceId"`
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`

	OrderDescription string `json:"orderDescription,omitempty"`

	CustomerFirstName   string `json:"customerFirstName"`
	CustomerLastName    string `json:"customerLastName"`
	CustomerEmail       string `json:"customerEmail"`
	CustomerMobilePhone string `json:"customerMobilePhone"`

	BillingAddressStreet      string `json:"billingAddressStreet"`
	BillingAddressCity        string `json:"billingAddressCity"`
	BillingAddressCountry     string `json:"billingAddressCountry"`
	BillingAddressPostcodeZip string `json:"billingAddressPostcodeZip"`

	CheckValue string `json:"checkValue"`

	IsMobilePayment    int    `json:"isMobilePayment"`
	IntegrationType    string `json:"integrationType"` // Max 20 chars
	IntegrationVersion string `json:"integrationVersion"`
}

// PAYablePaymentResponse represents the response from PAYable IPG
type PAYablePaymentResponse struct {
	Status          string `json:"status"`            // "success", "PENDING" or "error"
	UID             string `json:"uid"`               // Unique transaction ID
	StatusIndicator string `json:"statusIndicator"`   // Token for status checks
	PaymentPage     string `json:"paymentPage"`       // URL to redirect user for payment
	Message         string `json:"message,omitempty"` // Error message if status is error
}

// PAYableWebhookPayload represents the webhook payload from PAYable
type PAYableWebhookPayload struct {
	Status          string `json:"status"`
	UID             string `json:"uid"`
	InvoiceID       string `json:"invoiceId"`
	Amount          string `json:"amount"`
	CurrencyCode    string `json:"currencyCode"`
	PaymentStatus   string `json:"paymentStatus"` // "SUCCESS", "FAILED", "CANCELLED"
	TransactionID   string `json:"transactionId,omitempty"`
	PaymentMethod   string `json:"paymentMethod,omitempty"`
	StatusIndicator string `json:"statusIndicator"`
}

// ErrWebhookSignature is returned when a notification does not carry the
// token issued for its invoice
var ErrWebhookSignature = errors.New("webhook token does not match invoice")

// WebhookTokenParam is the query parameter carrying the notification token
const WebhookTokenParam = "token"

// GatewayError is returned when PAYable answers with a non-200 status or a
// rejected initiation
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway rejected request (status %d): %s", e.StatusCode, e.Message)
}

// NewPAYableService creates a new PAYable payment service
func NewPAYableService(cfg *config.PaymentConfig, logger *logrus.Logger) *PAYableService {
	endpoint, ok := PAYableEnvironmentURLs[cfg.Environment]
	if !ok {
		endpoint = PAYableEnvironmentURLs["sandbox"]
	}
	return &PAYableService{
		config:   cfg,
		logger:   logger,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEndpoint overrides the IPG endpoint
func (s *PAYableService) WithEndpoint(endpoint string) *PAYableService {
	s.endpoint = endpoint
	return s
}

// GenerateCheckValue creates the SHA-512 checkValue for PAYable authentication
// Step 1: hash1 = SHA512(merchantToken) uppercase hex
// Step 2: hash2 = SHA512("merchantKey|invoiceId|amount|currencyCode|hash1") uppercase hex
func (s *PAYableService) GenerateCheckValue(invoiceID, amount, currencyCode string) string {
	hash1 := sha512.Sum512([]byte(s.config.MerchantToken))
	hash1Hex := strings.ToUpper(hex.EncodeToString(hash1[:]))

	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		s.config.MerchantKey,
		invoiceID,
		amount,
		currencyCode,
		hash1Hex,
	)
	hash2 := sha512.Sum512([]byte(data))
	return strings.ToUpper(hex.EncodeToString(hash2[:]))
}

// InitiatePaymentParams contains all parameters needed to initiate a payment
type InitiatePaymentParams struct {
	InvoiceID        string
	Amount           float64
	CurrencyCode     string
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	OrderDescription string
	ReturnURL        string
	WebhookURL       string
}

// InitiatePayment creates a payment request and returns the payment page URL
func (s *PAYableService) InitiatePayment(ctx context.Context, params *InitiatePaymentParams) (*PAYablePaymentResponse, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("payment gateway not configured: missing merchant credentials")
	}

	amount := fmt.Sprintf("%.2f", params.Amount)
	currency := params.CurrencyCode
	if currency == "" {
		currency = s.config.Currency
	}
	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = s.config.ReturnURL
	}
	webhookURL := params.WebhookURL
	if webhookURL == "" {
		webhookURL = s.config.WebhookURL
	}
	webhookURL, err := s.signWebhookURL(webhookURL, params.InvoiceID)
	if err != nil {
		return nil, err
	}

	firstName, lastName := splitName(params.CustomerName)
	if lastName == "" {
		lastName = "." // PAYable requires last name
	}
	email := params.CustomerEmail
	if email == "" {
		email = "attendee@eventlodge.lk"
	}
	phone := params.CustomerPhone
	if phone == "" {
		phone = "0770000000"
	}

	request := &PAYablePaymentRequest{
		MerchantKey:               s.config.MerchantKey,
		LogoURL:                   s.config.LogoURL,
		ReturnURL:                 returnURL,
		WebhookURL:                webhookURL,
		PaymentType:               1,
		InvoiceID:                 params.InvoiceID,
		Amount:                    amount,
		CurrencyCode:              currency,
		OrderDescription:          params.OrderDescription,
		CustomerFirstName:         firstName,
		CustomerLastName:          lastName,
		CustomerEmail:             email,
		CustomerMobilePhone:       phone,
		BillingAddressStreet:      "Sri Lanka",
		BillingAddressCity:        "Colombo",
		BillingAddressCountry:     "LK",
		BillingAddressPostcodeZip: "00000",
		CheckValue:                s.GenerateCheckValue(params.InvoiceID, amount, currency),
		IsMobilePayment:           0,
		IntegrationType:           "EventLodge",
		IntegrationVersion:        "1.0.0",
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id": params.InvoiceID,
		"amount":     amount,
		"currency":   currency,
		"endpoint":   s.endpoint,
	}).Info("Initiating PAYable payment")

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call PAYable endpoint")
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"invoice_id":  params.InvoiceID,
	}).Debug("PAYable response received")

	if resp.StatusCode != http.StatusOK {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var paymentResp PAYablePaymentResponse
	if err := json.Unmarshal(body, &paymentResp); err != nil {
		s.logger.WithFields(logrus.Fields{
			"body":  string(body),
			"error": err.Error(),
		}).Error("Failed to parse PAYable response")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// PAYable returns "PENDING" when the payment page is ready, or "success"
	if paymentResp.Status != "success" && paymentResp.Status != "PENDING" {
		errMsg := paymentResp.Message
		if errMsg == "" {
			errMsg = fmt.Sprintf("status=%s", paymentResp.Status)
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: errMsg}
	}

	if paymentResp.PaymentPage == "" {
		return nil, fmt.Errorf("payment initiation failed: no payment page URL returned")
	}

	s.logger.WithFields(logrus.Fields{
		"uid":        paymentResp.UID,
		"invoice_id": params.InvoiceID,
	}).Info("PAYable payment initiated successfully")

	return &paymentResp, nil
}

// WebhookToken is the HMAC-SHA256 of the invoice id under the webhook
// secret. Empty when no secret is configured.
func (s *PAYableService) WebhookToken(invoiceID string) string {
	if s.config.WebhookSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write([]byte(invoiceID))
	return hex.EncodeToString(mac.Sum(nil))
}

// signWebhookURL appends the invoice's token to the notification URL
func (s *PAYableService) signWebhookURL(raw, invoiceID string) (string, error) {
	token := s.WebhookToken(invoiceID)
	if raw == "" || token == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}
	q := u.Query()
	q.Set(WebhookTokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VerifyWebhook validates and parses a webhook payload from PAYable. With a
// webhook secret configured the token must match the one issued for the
// payload's invoice.
func (s *PAYableService) VerifyWebhook(body []byte, token string) (*PAYableWebhookPayload, error) {
	var payload PAYableWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	if payload.UID == "" || payload.InvoiceID == "" {
		return nil, fmt.Errorf("webhook missing required fields")
	}

	if expected := s.WebhookToken(payload.InvoiceID); expected != "" {
		if !hmac.Equal([]byte(expected), []byte(token)) {
			return nil, ErrWebhookSignature
		}
	} else {
		s.logger.WithField("invoice_id", payload.InvoiceID).Warn("Webhook secret not configured, accepting unsigned notification")
	}

	s.logger.WithFields(logrus.Fields{
		"uid":            payload.UID,
		"invoice_id":     payload.InvoiceID,
		"payment_status": payload.PaymentStatus,
		"amount":         payload.Amount,
	}).Info("Webhook payload verified")

	return &payload, nil
}

// IsPaymentSuccessful checks if a webhook indicates successful payment
func (s *PAYableService) IsPaymentSuccessful(payload *PAYableWebhookPayload) bool {
	return strings.ToUpper(payload.PaymentStatus) == "SUCCESS"
}

// IsConfigured returns true if payment gateway is properly configured
func (s *PAYableService) IsConfigured() bool {
	return s.config.MerchantKey != "" && s.config.MerchantToken != ""
}

func splitName(fullName string) (firstName, lastName string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "Attendee", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
