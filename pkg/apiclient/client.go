// Package apiclient is the typed HTTP client the booker uses to talk to the
// accommodation API. Every failure is returned as *APIError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
)

const defaultTimeout = 15 * time.Second

// Transport failure codes. Server errors carry the "error" field of the body.
const (
	CodeTimeout = "timeout"
	CodeNetwork = "network"
	CodeRequest = "request"
)

// APIError is the single error type for API calls. StatusCode is 0 when the
// request never produced a response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api %s error: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// Ambiguous reports whether the server may or may not have applied the
// request: transport failures and 5xx responses.
func (e *APIError) Ambiguous() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// Client calls the accommodation API with a bearer token
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// GetCatalog reads facilities for an event and kind
func (c *Client) GetCatalog(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) (*models.CatalogResponse, error) {
	path := fmt.Sprintf("/api/v1/events/%s/accommodations?kind=%s", eventID, url.QueryEscape(string(kind)))
	var resp models.CatalogResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reserve claims a bed or room
func (c *Client) Reserve(ctx context.Context, req *models.ReserveRequest) (*models.Booking, error) {
	var booking models.Booking
	if err := c.do(ctx, http.MethodPost, "/api/v1/accommodations/reserve", req, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// AllocateHostel links a hostel facility to a registration
func (c *Client) AllocateHostel(ctx context.Context, req *models.HostelAllocationRequest) (*models.AllocationResult, error) {
	var result models.AllocationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/allocations/hostel", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AllocateHotel links a hotel room type, or redeems a pairing code
func (c *Client) AllocateHotel(ctx context.Context, req *models.HotelAllocationRequest) (*models.AllocationResult, error) {
	var result models.AllocationResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/allocations/hotel", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAllocations returns the caller's allocations for an event
func (c *Client) ListAllocations(ctx context.Context, eventID uuid.UUID) ([]models.Allocation, error) {
	var resp struct {
		Allocations []models.Allocation `json:"allocations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/allocations?event_id="+eventID.String(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Allocations, nil
}

// InitiateCheckout opens a hosted checkout for an idempotency reference
func (c *Client) InitiateCheckout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	var resp models.CheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments/checkout", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPaymentStatus reads the webhook-settled status of a payment
func (c *Client) GetPaymentStatus(ctx context.Context, reference string) (*models.PaymentStatusResponse, error) {
	var resp models.PaymentStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/payments/"+url.PathEscape(reference), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &APIError{Code: CodeRequest, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Code: CodeRequest, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: CodeNetwork, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: CodeRequest, Message: "unexpected response body", Err: err}
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func classifyRequestError(ctx context.Context, err error) *APIError {
	if isTimeoutError(ctx, err) {
		return &APIError{Code: CodeTimeout, Err: err}
	}
	if isNetworkError(err) {
		return &APIError{Code: CodeNetwork, Err: err}
	}
	return &APIError{Code: CodeRequest, Err: err}
}

func isTimeoutError(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
