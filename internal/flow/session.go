package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/internal/storage"
	"github.com/eventlodge/accommodation-backend/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionConfig holds the URLs and delays a session needs
type SessionConfig struct {
	SessionID       string
	RedirectURL     string
	NotificationURL string
	DashboardURL    string
	PairingDelay    time.Duration
	CallbackDelay   time.Duration
}

// Session wires the flow components for one attendee session
type Session struct {
	cfg        SessionConfig
	catalog    *CatalogReader
	reserver   *Reserver
	dispatcher *Dispatcher
	initiator  *Initiator
	reconciler *Reconciler
	state      *StateStore
	navigator  Navigator
	logger     *logrus.Logger
}

// NewSession builds a session on top of an API and a state backend
func NewSession(api API, kv storage.KV, navigator Navigator, cfg SessionConfig, logger *logrus.Logger) *Session {
	state := NewStateStore(kv, cfg.SessionID, logger)
	catalog := NewCatalogReader(api, logger)
	return &Session{
		cfg:        cfg,
		catalog:    catalog,
		reserver:   NewReserver(api, catalog, logger),
		dispatcher: NewDispatcher(api, logger),
		initiator:  NewInitiator(api, state, navigator, cfg.RedirectURL, cfg.NotificationURL, logger),
		reconciler: NewReconciler(state, navigator, cfg.DashboardURL, cfg.CallbackDelay, logger),
		state:      state,
		navigator:  navigator,
		logger:     logger,
	}
}

func (s *Session) Catalog() *CatalogReader { return s.catalog }
func (s *Session) Reserver() *Reserver { return s.reserver }
func (s *Session) Dispatcher() *Dispatcher { return s.dispatcher }
func (s *Session) Initiator() *Initiator { return s.initiator }
func (s *Session) Reconciler() *Reconciler { return s.reconciler }
func (s *Session) State() *StateStore { return s.state }

// BookRequest is one non-interactive booking run
type BookRequest struct {
	EventID        uuid.UUID
	UserID         uuid.UUID
	RegistrationID uuid.UUID
	Kind           models.AccommodationKind
	FacilityID     uuid.UUID
	RoomID         uuid.UUID
	BedSpaceID     uuid.UUID
	Pricing        models.PricingCategory
	Married        bool
	PairingCode    string
}

// BookResult reports how far a booking run got
type BookResult struct {
	Reserve    ReserveOutcome
	Allocation *models.AllocationResult
	Paired     bool
	Options    []Option
}

// Book reads the catalog, selects, reserves and allocates. A pairing code
// redeems a spouse's allocation instead of the direct hotel allocation.
func (s *Session) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	// pairing checks are local and must fail before anything is reserved
	if req.PairingCode != "" {
		if !PairingOffered(req.Kind, req.Married) {
			return nil, ErrPairingNotOffered
		}
		if err := validator.ValidatePairingCode(req.PairingCode); err != nil {
			return nil, err
		}
	}

	if err := s.state.SaveFlow(ctx, FlowState{View: ViewAccommodation, EventID: req.EventID}); err != nil {
		s.logger.WithError(err).Warn("Failed to save flow state")
	}

	catalog := s.catalog.Read(ctx, req.EventID, req.Kind)
	switch catalog.Status {
	case CatalogUnavailable:
		return nil, catalog.Err
	case CatalogEmpty:
		return nil, errors.New(catalog.Message)
	}

	sel := NewSelector(req.Kind, catalog.Facilities)
	if err := s.applySelection(sel, req); err != nil {
		return &BookResult{Options: sel.Options()}, err
	}

	outcome := s.reserver.Reserve(ctx, sel, req.EventID, req.Pricing)
	result := &BookResult{Reserve: outcome}
	if outcome.Status != Booked {
		result.Options = sel.Options()
		return result, nil
	}

	actx := AllocationContext{
		RegistrationID: req.RegistrationID,
		EventID:        req.EventID,
		UserID:         req.UserID,
		Booking:        outcome.Booking,
	}

	if req.PairingCode != "" {
		pairing, err := NewPairingSession(s.dispatcher, actx, req.Married, s.cfg.PairingDelay, s.Complete, s.logger)
		if err != nil {
			return result, err
		}
		if err := pairing.ChooseCode(); err != nil {
			return result, err
		}
		allocation, err := pairing.Submit(ctx, req.PairingCode)
		if err != nil {
			s.keepUnlinked(ctx, actx, err)
			return result, fmt.Errorf("%s: %w", pairing.InlineError(), err)
		}
		result.Allocation = allocation
		result.Paired = true
		return result, nil
	}

	allocation, err := s.dispatcher.Allocate(ctx, actx, TargetFor(outcome.Booking.Kind))
	if err != nil {
		s.keepUnlinked(ctx, actx, err)
		return result, err
	}
	result.Allocation = allocation

	if err := s.state.SaveFlow(ctx, FlowState{View: ViewPayment, EventID: req.EventID}); err != nil {
		s.logger.WithError(err).Warn("Failed to save flow state")
	}
	return result, nil
}

// keepUnlinked records a reserved but unallocated booking so a later run
// can retry allocation without reserving again
func (s *Session) keepUnlinked(ctx context.Context, actx AllocationContext, err error) {
	var partial *PartialFailureError
	if !errors.As(err, &partial) {
		return
	}
	state := FlowState{
		View:    ViewAccommodation,
		EventID: actx.EventID,
		Unlinked: &UnlinkedBooking{
			Booking:        partial.Booking,
			RegistrationID: actx.RegistrationID,
			EventID:        actx.EventID,
			UserID:         actx.UserID,
		},
	}
	if err := s.state.SaveFlow(ctx, state); err != nil {
		s.logger.WithError(err).Warn("Failed to save unlinked booking")
	}
}

// UnlinkedBooking returns the last booking whose allocation failed, if any
func (s *Session) UnlinkedBooking(ctx context.Context) (*UnlinkedBooking, bool) {
	state, ok := s.state.LoadFlow(ctx)
	if !ok || state.Unlinked == nil || state.Unlinked.Booking == nil {
		return nil, false
	}
	return state.Unlinked, true
}

// RetryAllocation links an already reserved booking. It never reserves.
func (s *Session) RetryAllocation(ctx context.Context, actx AllocationContext, target Target) (*models.AllocationResult, error) {
	allocation, err := s.dispatcher.Allocate(ctx, actx, target)
	if err != nil {
		s.keepUnlinked(ctx, actx, err)
		return nil, err
	}

	if err := s.state.SaveFlow(ctx, FlowState{View: ViewPayment, EventID: actx.EventID}); err != nil {
		s.logger.WithError(err).Warn("Failed to save flow state")
	}
	return allocation, nil
}

func (s *Session) applySelection(sel *Selector, req BookRequest) error {
	if err := sel.SelectFacility(req.FacilityID); err != nil {
		return err
	}
	if req.Kind == models.AccommodationHostel {
		return sel.SelectBed(req.BedSpaceID)
	}
	return sel.SelectRoom(req.RoomID)
}

// Pay starts a checkout. When it returns without error the process should
// treat the navigation as final.
func (s *Session) Pay(ctx context.Context, req PaymentRequest) (*Redirect, error) {
	return s.initiator.Initiate(ctx, req)
}

// HandleReturn reconciles the browser's return from checkout
func (s *Session) HandleReturn(ctx context.Context, returnURL string) (*CallbackResult, error) {
	return s.reconciler.HandleReturn(ctx, returnURL)
}

// Resume reports where a fresh run should pick up
func (s *Session) Resume(ctx context.Context) *ResumePoint {
	return s.reconciler.Resume(ctx)
}

// Complete is the shared end of a successful pairing and a successful
// direct payment: resume to the dashboard and go there.
func (s *Session) Complete(ctx context.Context, result *models.AllocationResult) error {
	state := FlowState{View: ViewDashboard, Resumed: true, PaymentStatus: HintPaired}
	if prev, ok := s.state.LoadFlow(ctx); ok {
		state.EventID = prev.EventID
	}
	if err := s.state.SaveFlow(ctx, state); err != nil {
		return err
	}
	return s.navigator.Navigate(ctx, s.cfg.DashboardURL)
}
