package flow

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errUnexpectedCall = errors.New("unexpected call")

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeAPI records every call and answers with the configured functions
type fakeAPI struct {
	mu sync.Mutex

	catalogFn  func(eventID uuid.UUID, kind models.AccommodationKind) (*models.CatalogResponse, error)
	reserveFn  func(req *models.ReserveRequest) (*models.Booking, error)
	hostelFn   func(req *models.HostelAllocationRequest) (*models.AllocationResult, error)
	hotelFn    func(req *models.HotelAllocationRequest) (*models.AllocationResult, error)
	checkoutFn func(req *models.CheckoutRequest) (*models.CheckoutResponse, error)

	catalogCalls  int
	reserveCalls  []*models.ReserveRequest
	hostelCalls   []*models.HostelAllocationRequest
	hotelCalls    []*models.HotelAllocationRequest
	checkoutCalls []*models.CheckoutRequest
}

func (f *fakeAPI) GetCatalog(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) (*models.CatalogResponse, error) {
	f.mu.Lock()
	f.catalogCalls++
	fn := f.catalogFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errUnexpectedCall
	}
	return fn(eventID, kind)
}

func (f *fakeAPI) Reserve(ctx context.Context, req *models.ReserveRequest) (*models.Booking, error) {
	f.mu.Lock()
	f.reserveCalls = append(f.reserveCalls, req)
	fn := f.reserveFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errUnexpectedCall
	}
	return fn(req)
}

func (f *fakeAPI) AllocateHostel(ctx context.Context, req *models.HostelAllocationRequest) (*models.AllocationResult, error) {
	f.mu.Lock()
	f.hostelCalls = append(f.hostelCalls, req)
	fn := f.hostelFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errUnexpectedCall
	}
	return fn(req)
}

func (f *fakeAPI) AllocateHotel(ctx context.Context, req *models.HotelAllocationRequest) (*models.AllocationResult, error) {
	f.mu.Lock()
	f.hotelCalls = append(f.hotelCalls, req)
	fn := f.hotelFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errUnexpectedCall
	}
	return fn(req)
}

func (f *fakeAPI) InitiateCheckout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	f.mu.Lock()
	f.checkoutCalls = append(f.checkoutCalls, req)
	fn := f.checkoutFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errUnexpectedCall
	}
	return fn(req)
}

func (f *fakeAPI) catalogCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalogCalls
}

type recordingNavigator struct {
	visited []string
}

func (n *recordingNavigator) Navigate(ctx context.Context, target string) error {
	n.visited = append(n.visited, target)
	return nil
}

type recordingSleep struct {
	slept []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func newFileKV(t *testing.T, dir string) storage.KV {
	t.Helper()
	kv, err := storage.NewFileKV(dir)
	require.NoError(t, err)
	return kv
}

func newTestState(t *testing.T) (*StateStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStateStore(newFileKV(t, dir), "test", testLogger()), dir
}

type hostelFixture struct {
	facility models.Facility
	roomID   uuid.UUID
	bedID    uuid.UUID
}

// oneBedHostel is a facility with a single room holding a single bed
func oneBedHostel(available bool) hostelFixture {
	facilityID, roomID, bedID := uuid.New(), uuid.New(), uuid.New()
	return hostelFixture{
		facility: models.Facility{
			ID:       facilityID,
			Kind:     models.AccommodationHostel,
			Name:     "North Hall",
			Capacity: 1,
			Rooms: []models.Room{{
				ID:         roomID,
				FacilityID: facilityID,
				RoomNumber: "N1",
				Capacity:   1,
				BedSpaces: []models.BedSpace{{
					ID:        bedID,
					RoomID:    roomID,
					BedNumber: "A",
					Price:     40,
					Available: available,
				}},
			}},
		},
		roomID: roomID,
		bedID:  bedID,
	}
}

type hotelFixture struct {
	facility   models.Facility
	roomID     uuid.UUID
	roomTypeID uuid.UUID
}

func oneRoomHotel() hotelFixture {
	facilityID, roomID, roomTypeID := uuid.New(), uuid.New(), uuid.New()
	return hotelFixture{
		facility: models.Facility{
			ID:   facilityID,
			Kind: models.AccommodationHotel,
			Name: "Grand",
			Rooms: []models.Room{{
				ID:         roomID,
				FacilityID: facilityID,
				RoomNumber: "204",
				RoomType:   "double",
				RoomTypeID: &roomTypeID,
				Capacity:   2,
				Price:      120,
				Available:  true,
			}},
		},
		roomID:     roomID,
		roomTypeID: roomTypeID,
	}
}

func catalogOf(facilities ...models.Facility) func(uuid.UUID, models.AccommodationKind) (*models.CatalogResponse, error) {
	return func(eventID uuid.UUID, kind models.AccommodationKind) (*models.CatalogResponse, error) {
		return &models.CatalogResponse{EventID: eventID, Kind: kind, Facilities: facilities}, nil
	}
}

func hotelBooking(f hotelFixture) *models.Booking {
	return &models.Booking{
		ID:         uuid.New(),
		Kind:       models.AccommodationHotel,
		FacilityID: f.facility.ID,
		RoomID:     f.roomID,
		RoomTypeID: &f.roomTypeID,
		Price:      120,
	}
}
