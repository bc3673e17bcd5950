package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AccommodationStore is the persistence the accommodation service needs
type AccommodationStore interface {
	ListFacilities(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) ([]models.Facility, error)
	Reserve(ctx context.Context, req *models.ReserveRequest, userID uuid.UUID) (*models.Booking, error)
}

// CatalogCache is a read-through cache of catalog snapshots
type CatalogCache interface {
	Get(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) ([]models.Facility, bool)
	Set(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind, facilities []models.Facility)
	Invalidate(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind)
}

// AccommodationService serves the catalog and performs reservations
type AccommodationService struct {
	store  AccommodationStore
	cache  CatalogCache
	logger *logrus.Logger
}

// NewAccommodationService creates a new AccommodationService. cache may be nil.
func NewAccommodationService(store AccommodationStore, cache CatalogCache, logger *logrus.Logger) *AccommodationService {
	return &AccommodationService{store: store, cache: cache, logger: logger}
}

// GetCatalog returns the facilities for an event and kind, from cache when fresh
func (s *AccommodationService) GetCatalog(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) (*models.CatalogResponse, error) {
	if s.cache != nil {
		if facilities, ok := s.cache.Get(ctx, eventID, kind); ok {
			return &models.CatalogResponse{EventID: eventID, Kind: kind, Facilities: facilities}, nil
		}
	}

	facilities, err := s.store.ListFacilities(ctx, eventID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, eventID, kind, facilities)
	}

	return &models.CatalogResponse{EventID: eventID, Kind: kind, Facilities: facilities}, nil
}

// Reserve claims the requested unit for the user. A lost race surfaces as
// models.ErrUnitTaken; the cached catalog is dropped in both outcomes since it
// is now known to be stale.
func (s *AccommodationService) Reserve(ctx context.Context, userID uuid.UUID, req *models.ReserveRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logFields := logrus.Fields{
		"user_id":     userID,
		"event_id":    req.EventID,
		"kind":        req.Kind,
		"facility_id": req.FacilityID,
	}

	booking, err := s.store.Reserve(ctx, req, userID)
	if err != nil {
		if errors.Is(err, models.ErrUnitTaken) {
			s.invalidate(ctx, req)
			s.logger.WithFields(logFields).Info("Reservation lost to a concurrent booking")
		}
		return nil, err
	}

	s.invalidate(ctx, req)
	s.logger.WithFields(logFields).WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"price":      booking.Price,
	}).Info("Accommodation reserved")

	return booking, nil
}

func (s *AccommodationService) invalidate(ctx context.Context, req *models.ReserveRequest) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, req.EventID, req.Kind)
	}
}
