package services

import (
	"context"
	"errors"
	"testing"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccommodationStore struct {
	facilities []models.Facility
	listCalls  int
	reserveErr error
}

func (f *fakeAccommodationStore) ListFacilities(context.Context, uuid.UUID, models.AccommodationKind) ([]models.Facility, error) {
	f.listCalls++
	return f.facilities, nil
}

func (f *fakeAccommodationStore) Reserve(_ context.Context, req *models.ReserveRequest, userID uuid.UUID) (*models.Booking, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	return &models.Booking{
		ID:         uuid.New(),
		EventID:    req.EventID,
		UserID:     userID,
		Kind:       req.Kind,
		FacilityID: req.FacilityID,
		BedSpaceID: req.BedSpaceID,
		Price:      45,
	}, nil
}

type memoryCatalogCache struct {
	entries     map[string][]models.Facility
	invalidated int
}

func (c *memoryCatalogCache) key(eventID uuid.UUID, kind models.AccommodationKind) string {
	return eventID.String() + ":" + string(kind)
}

func (c *memoryCatalogCache) Get(_ context.Context, eventID uuid.UUID, kind models.AccommodationKind) ([]models.Facility, bool) {
	f, ok := c.entries[c.key(eventID, kind)]
	return f, ok
}

func (c *memoryCatalogCache) Set(_ context.Context, eventID uuid.UUID, kind models.AccommodationKind, facilities []models.Facility) {
	c.entries[c.key(eventID, kind)] = facilities
}

func (c *memoryCatalogCache) Invalidate(_ context.Context, eventID uuid.UUID, kind models.AccommodationKind) {
	c.invalidated++
	delete(c.entries, c.key(eventID, kind))
}

func TestGetCatalog_ReadsThroughCache(t *testing.T) {
	store := &fakeAccommodationStore{facilities: []models.Facility{{ID: uuid.New(), Name: "North Hall"}}}
	cache := &memoryCatalogCache{entries: map[string][]models.Facility{}}
	service := NewAccommodationService(store, cache, testLogger())
	eventID := uuid.New()

	first, err := service.GetCatalog(context.Background(), eventID, models.AccommodationHostel)
	require.NoError(t, err)
	second, err := service.GetCatalog(context.Background(), eventID, models.AccommodationHostel)
	require.NoError(t, err)

	assert.Equal(t, first.Facilities, second.Facilities)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, models.AccommodationHostel, second.Kind)
}

func TestGetCatalog_WithoutCache(t *testing.T) {
	store := &fakeAccommodationStore{facilities: []models.Facility{}}
	service := NewAccommodationService(store, nil, testLogger())

	resp, err := service.GetCatalog(context.Background(), uuid.New(), models.AccommodationHotel)
	require.NoError(t, err)
	assert.Empty(t, resp.Facilities)
	assert.Equal(t, 1, store.listCalls)
}

func TestReserve_InvalidatesCatalog(t *testing.T) {
	bedID := uuid.New()
	req := &models.ReserveRequest{
		EventID:    uuid.New(),
		Kind:       models.AccommodationHostel,
		FacilityID: uuid.New(),
		RoomID:     ptrUUID(uuid.New()),
		BedSpaceID: &bedID,
	}

	t.Run("success", func(t *testing.T) {
		cache := &memoryCatalogCache{entries: map[string][]models.Facility{}}
		service := NewAccommodationService(&fakeAccommodationStore{}, cache, testLogger())

		booking, err := service.Reserve(context.Background(), uuid.New(), req)
		require.NoError(t, err)
		assert.Equal(t, &bedID, booking.BedSpaceID)
		assert.Equal(t, 1, cache.invalidated)
		assert.Equal(t, models.PricingStandard, req.PricingCategory)
	})

	t.Run("lost race", func(t *testing.T) {
		cache := &memoryCatalogCache{entries: map[string][]models.Facility{}}
		store := &fakeAccommodationStore{reserveErr: models.ErrUnitTaken}
		service := NewAccommodationService(store, cache, testLogger())

		_, err := service.Reserve(context.Background(), uuid.New(), req)
		assert.ErrorIs(t, err, models.ErrUnitTaken)
		assert.Equal(t, 1, cache.invalidated)
	})

	t.Run("other failure keeps cache", func(t *testing.T) {
		cache := &memoryCatalogCache{entries: map[string][]models.Facility{}}
		store := &fakeAccommodationStore{reserveErr: errors.New("db down")}
		service := NewAccommodationService(store, cache, testLogger())

		_, err := service.Reserve(context.Background(), uuid.New(), req)
		assert.Error(t, err)
		assert.Equal(t, 0, cache.invalidated)
	})
}

func TestReserve_HostelWithoutBedIsRejected(t *testing.T) {
	service := NewAccommodationService(&fakeAccommodationStore{}, nil, testLogger())
	_, err := service.Reserve(context.Background(), uuid.New(), &models.ReserveRequest{
		EventID:    uuid.New(),
		Kind:       models.AccommodationHostel,
		FacilityID: uuid.New(),
	})
	assert.Error(t, err)
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }
