package services

import (
	"context"
	"io"
	"sync"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type publishedEvent struct {
	key   string
	event interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, event: event})
	return p.err
}

type fakeAllocationStore struct {
	created  []*models.Allocation
	redeemed *models.Allocation
	redeemFn func(code string, a *models.Allocation) (*models.Allocation, error)
	released *uuid.UUID
	list     []models.Allocation
}

func (f *fakeAllocationStore) Create(_ context.Context, a *models.Allocation) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.created = append(f.created, a)
	return nil
}

func (f *fakeAllocationStore) RedeemPairingCode(_ context.Context, code string, a *models.Allocation, releaseBooking *uuid.UUID) (*models.Allocation, error) {
	f.released = releaseBooking
	return f.redeemFn(code, a)
}

func (f *fakeAllocationStore) ListByUserAndEvent(context.Context, uuid.UUID, uuid.UUID) ([]models.Allocation, error) {
	return f.list, nil
}

type fakeFacilityChecker struct {
	exists bool
	calls  int
}

func (f *fakeFacilityChecker) FacilityExists(context.Context, uuid.UUID, uuid.UUID, models.AccommodationKind) (bool, error) {
	f.calls++
	return f.exists, nil
}

type fakePaymentStore struct {
	byRef      map[string]*models.Payment
	createErr  error
	loseRace   *models.Payment
	checkouts  map[uuid.UUID]string
	failed     []string
	settleFn   func(ref string) (*models.Payment, []models.Allocation, bool, error)
	settleRefs []string
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		byRef:     map[string]*models.Payment{},
		checkouts: map[uuid.UUID]string{},
	}
}

func (f *fakePaymentStore) GetByReference(_ context.Context, ref string) (*models.Payment, error) {
	return f.byRef[ref], nil
}

func (f *fakePaymentStore) Create(_ context.Context, p *models.Payment) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	if f.loseRace != nil {
		f.byRef[p.Reference] = f.loseRace
		return false, nil
	}
	p.ID = uuid.New()
	p.Status = models.PaymentStatusPending
	f.byRef[p.Reference] = p
	return true, nil
}

func (f *fakePaymentStore) SetCheckout(_ context.Context, id uuid.UUID, _ *string, checkoutURL string) error {
	f.checkouts[id] = checkoutURL
	for _, p := range f.byRef {
		if p.ID == id {
			u := checkoutURL
			p.CheckoutURL = &u
		}
	}
	return nil
}

func (f *fakePaymentStore) MarkFailed(_ context.Context, ref string) (bool, error) {
	f.failed = append(f.failed, ref)
	return true, nil
}

func (f *fakePaymentStore) Settle(_ context.Context, ref string) (*models.Payment, []models.Allocation, bool, error) {
	f.settleRefs = append(f.settleRefs, ref)
	return f.settleFn(ref)
}

type fakePairingStore struct {
	collisions int
	assigned   map[uuid.UUID]string
}

func (f *fakePairingStore) AssignPairingCode(_ context.Context, id uuid.UUID, code string) (bool, error) {
	if f.collisions > 0 {
		f.collisions--
		return false, models.ErrDuplicatePairingCode
	}
	if f.assigned == nil {
		f.assigned = map[uuid.UUID]string{}
	}
	if _, ok := f.assigned[id]; ok {
		return false, nil
	}
	f.assigned[id] = code
	return true, nil
}

type fakeAuditor struct {
	entries    []*models.PaymentAudit
	duplicates map[string]bool
}

func (f *fakeAuditor) Log(_ context.Context, a *models.PaymentAudit) error {
	f.entries = append(f.entries, a)
	return nil
}

func (f *fakeAuditor) CheckDuplicate(_ context.Context, key string) (bool, error) {
	return f.duplicates[key], nil
}

func (f *fakeAuditor) has(eventType models.PaymentEventType) bool {
	for _, e := range f.entries {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

type fakeGateway struct {
	configured bool
	resp       *PAYablePaymentResponse
	err        error
	calls      int
	// embeds the real parser so webhook handling is exercised end to end
	parser *PAYableService
}

func (g *fakeGateway) IsConfigured() bool { return g.configured }

func (g *fakeGateway) InitiatePayment(context.Context, *InitiatePaymentParams) (*PAYablePaymentResponse, error) {
	g.calls++
	return g.resp, g.err
}

func (g *fakeGateway) VerifyWebhook(body []byte, token string) (*PAYableWebhookPayload, error) {
	return g.parser.VerifyWebhook(body, token)
}

func (g *fakeGateway) IsPaymentSuccessful(p *PAYableWebhookPayload) bool {
	return g.parser.IsPaymentSuccessful(p)
}
