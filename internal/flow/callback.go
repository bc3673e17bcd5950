package flow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CallbackStatus is the normalized return-URL hint
type CallbackStatus string

const (
	CallbackSuccess CallbackStatus = "success"
	CallbackFailed  CallbackStatus = "failed"
	CallbackUnknown CallbackStatus = "unknown"
)

// NormalizeStatus reads status, falling back to payment_status
func NormalizeStatus(query url.Values) CallbackStatus {
	value := query.Get("status")
	if value == "" {
		value = query.Get("payment_status")
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "success", "successful", "succeeded", "paid", "completed":
		return CallbackSuccess
	case "failed", "failure", "fail", "declined", "cancelled", "canceled", "error":
		return CallbackFailed
	}
	return CallbackUnknown
}

// CallbackResult tells the caller what to show. It never says whether the
// attendee was charged; only the webhook knows that.
type CallbackResult struct {
	Status        CallbackStatus
	Reference     string
	Pending       *PendingPayment
	AutoNavigated bool
	DashboardLink string
	Message       string
}

// Reconciler handles the browser's return from checkout
type Reconciler struct {
	state        *StateStore
	navigator    Navigator
	dashboardURL string
	delay        time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *logrus.Logger
}

// NewReconciler creates a reconciler that auto-navigates after delay
func NewReconciler(state *StateStore, navigator Navigator, dashboardURL string, delay time.Duration, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		state:        state,
		navigator:    navigator,
		dashboardURL: dashboardURL,
		delay:        delay,
		sleep:        sleepContext,
		logger:       logger,
	}
}

// HandleReturn reconciles a full return URL
func (r *Reconciler) HandleReturn(ctx context.Context, returnURL string) (*CallbackResult, error) {
	u, err := url.Parse(returnURL)
	if err != nil {
		return nil, fmt.Errorf("invalid return url: %w", err)
	}
	return r.Reconcile(ctx, u.Query())
}

// Reconcile applies the return-URL hint. Success and unknown are treated the
// same: resume to the dashboard and clear the pending entry. Failure keeps
// the entry, leaves the flow on payment and waits for the attendee.
func (r *Reconciler) Reconcile(ctx context.Context, query url.Values) (*CallbackResult, error) {
	status := NormalizeStatus(query)
	reference := query.Get("ref")

	pending, found := r.findPending(ctx, reference)
	result := &CallbackResult{Status: status, Reference: reference, DashboardLink: r.dashboardURL}
	if found {
		result.Reference = pending.Reference
		result.Pending = &pending
	}

	log := r.logger.WithFields(logrus.Fields{
		"status":    status,
		"reference": result.Reference,
		"found":     found,
	})

	flowState := FlowState{View: ViewDashboard, Resumed: true}
	if prev, ok := r.state.LoadFlow(ctx); ok {
		flowState.EventID = prev.EventID
	}
	if found {
		flowState.EventID = pending.EventID
	}

	if status == CallbackFailed {
		// not resumed: the next run lands back on payment to retry
		flowState.View = ViewPayment
		flowState.Resumed = false
		flowState.PaymentStatus = HintFailed
		if err := r.state.SaveFlow(ctx, flowState); err != nil {
			return nil, err
		}
		log.Info("Checkout returned failed, keeping pending payment")
		result.Message = "Your payment did not go through. You can try again from your dashboard."
		return result, nil
	}

	flowState.PaymentStatus = hintFor(status)
	if err := r.state.SaveFlow(ctx, flowState); err != nil {
		return nil, err
	}
	if found {
		if err := r.state.RemovePending(ctx, pending.Reference); err != nil {
			return nil, err
		}
	}
	log.Info("Checkout returned, resuming to dashboard")
	result.Message = "Thanks! We'll confirm your payment as soon as the provider notifies us."

	if err := r.sleep(ctx, r.delay); err != nil {
		return result, err
	}
	if err := r.navigator.Navigate(ctx, r.dashboardURL); err != nil {
		return result, fmt.Errorf("failed to open dashboard: %w", err)
	}
	result.AutoNavigated = true
	return result, nil
}

// hintFor maps a normalized status to the stored hint
func hintFor(status CallbackStatus) PaymentHint {
	switch status {
	case CallbackSuccess:
		return HintSuccess
	case CallbackFailed:
		return HintFailed
	}
	return HintUnknown
}

func (r *Reconciler) findPending(ctx context.Context, reference string) (PendingPayment, bool) {
	if reference != "" {
		p, ok := r.state.LoadPending(ctx)[reference]
		return p, ok
	}
	return r.state.MostRecentPending(ctx)
}

// ResumePoint says where a fresh run should pick up
type ResumePoint struct {
	Flow    *FlowState
	Pending []PendingPayment
}

// ShouldResume reports whether there is anything to pick up
func (p *ResumePoint) ShouldResume() bool {
	return p.Flow != nil && p.Flow.View != ViewEvents
}

// Resume reads durable state on start-up
func (r *Reconciler) Resume(ctx context.Context) *ResumePoint {
	point := &ResumePoint{Pending: SortedPending(r.state.LoadPending(ctx))}
	if state, ok := r.state.LoadFlow(ctx); ok {
		point.Flow = state
	}
	return point
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
