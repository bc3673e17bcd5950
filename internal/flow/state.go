package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const stateVersion = 1

// View is the last high-level screen the attendee was on
type View string

const (
	ViewEvents        View = "events"
	ViewAccommodation View = "accommodation"
	ViewPayment       View = "payment"
	ViewCheckout      View = "checkout"
	ViewDashboard     View = "dashboard"
)

// PaymentHint is what the client last believed about a payment. Only the
// server webhook decides whether anything was actually paid.
type PaymentHint string

const (
	HintNone    PaymentHint = ""
	HintPending PaymentHint = "pending"
	HintSuccess PaymentHint = "success"
	HintFailed  PaymentHint = "failed"
	HintUnknown PaymentHint = "unknown"
	HintPaired  PaymentHint = "paired"
)

// FlowState is where the attendee was in the journey
type FlowState struct {
	View          View             `json:"view"`
	EventID       uuid.UUID        `json:"event_id"`
	PaymentStatus PaymentHint      `json:"payment_status,omitempty"`
	Resumed       bool             `json:"resumed,omitempty"`
	Unlinked      *UnlinkedBooking `json:"unlinked,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// UnlinkedBooking is a reservation whose allocation failed. It is kept so
// allocation alone can be retried later.
type UnlinkedBooking struct {
	Booking        *models.Booking `json:"booking"`
	RegistrationID uuid.UUID       `json:"registration_id"`
	EventID        uuid.UUID       `json:"event_id"`
	UserID         uuid.UUID       `json:"user_id"`
}

// Context rebuilds the allocation context for a retry
func (u *UnlinkedBooking) Context() AllocationContext {
	return AllocationContext{
		RegistrationID: u.RegistrationID,
		EventID:        u.EventID,
		UserID:         u.UserID,
		Booking:        u.Booking,
	}
}

// PaymentKind says what a checkout pays for
type PaymentKind string

const (
	PaymentKindRegistration PaymentKind = "registration"
	PaymentKindDependents   PaymentKind = "dependents"
)

// PendingPayment is an in-flight checkout, keyed by its idempotency reference
type PendingPayment struct {
	Reference string      `json:"reference"`
	Kind      PaymentKind `json:"kind"`
	TargetIDs []uuid.UUID `json:"target_ids,omitempty"`
	Amount    float64     `json:"amount"`
	EventID   uuid.UUID   `json:"event_id"`
	StartedAt time.Time   `json:"started_at"`
}

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// StateStore persists FlowState and pending payments for one session.
// Missing or unreadable records load as absent.
type StateStore struct {
	kv      storage.KV
	session string
	logger  *logrus.Logger
	now     func() time.Time
}

// NewStateStore creates a state store for a session id
func NewStateStore(kv storage.KV, session string, logger *logrus.Logger) *StateStore {
	return &StateStore{kv: kv, session: session, logger: logger, now: time.Now}
}

func (s *StateStore) flowKey() string    { return "flow:" + s.session }
func (s *StateStore) pendingKey() string { return "pending:" + s.session }

// LoadFlow returns the saved flow state, or false when there is none usable
func (s *StateStore) LoadFlow(ctx context.Context) (*FlowState, bool) {
	var state FlowState
	if !s.load(ctx, s.flowKey(), &state) {
		return nil, false
	}
	return &state, true
}

// SaveFlow stamps and writes the flow state
func (s *StateStore) SaveFlow(ctx context.Context, state FlowState) error {
	state.UpdatedAt = s.now().UTC()
	return s.save(ctx, s.flowKey(), state)
}

// ClearFlow forgets the flow state
func (s *StateStore) ClearFlow(ctx context.Context) error {
	return s.kv.Delete(ctx, s.flowKey())
}

// LoadPending returns all pending payments. The map is never nil.
func (s *StateStore) LoadPending(ctx context.Context) map[string]PendingPayment {
	pending := make(map[string]PendingPayment)
	if !s.load(ctx, s.pendingKey(), &pending) || pending == nil {
		return make(map[string]PendingPayment)
	}
	return pending
}

// AddPending records a payment attempt without touching other entries
func (s *StateStore) AddPending(ctx context.Context, p PendingPayment) error {
	if p.Reference == "" {
		return errors.New("pending payment needs a reference")
	}
	pending := s.LoadPending(ctx)
	if p.StartedAt.IsZero() {
		p.StartedAt = s.now().UTC()
	}
	pending[p.Reference] = p
	return s.save(ctx, s.pendingKey(), pending)
}

// RemovePending drops one entry. Removing an unknown reference is a no-op.
func (s *StateStore) RemovePending(ctx context.Context, reference string) error {
	pending := s.LoadPending(ctx)
	if _, ok := pending[reference]; !ok {
		return nil
	}
	delete(pending, reference)
	if len(pending) == 0 {
		return s.kv.Delete(ctx, s.pendingKey())
	}
	return s.save(ctx, s.pendingKey(), pending)
}

// MostRecentPending returns the latest started entry
func (s *StateStore) MostRecentPending(ctx context.Context) (PendingPayment, bool) {
	entries := SortedPending(s.LoadPending(ctx))
	if len(entries) == 0 {
		return PendingPayment{}, false
	}
	return entries[len(entries)-1], true
}

// SortedPending orders entries oldest first
func SortedPending(pending map[string]PendingPayment) []PendingPayment {
	entries := make([]PendingPayment, 0, len(pending))
	for _, p := range pending {
		entries = append(entries, p)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartedAt.Equal(entries[j].StartedAt) {
			return entries[i].Reference < entries[j].Reference
		}
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})
	return entries
}

func (s *StateStore) load(ctx context.Context, key string, out interface{}) bool {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("Client state unreadable, treating as absent")
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("Client state corrupt, treating as absent")
		return false
	}
	if env.Version != stateVersion {
		s.logger.WithFields(logrus.Fields{
			"key":     key,
			"version": env.Version,
		}).Warn("Client state has unknown version, treating as absent")
		return false
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("Client state payload corrupt, treating as absent")
		return false
	}
	return true
}

func (s *StateStore) save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	raw, err := json.Marshal(envelope{Version: stateVersion, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Put(ctx, key, raw)
}
