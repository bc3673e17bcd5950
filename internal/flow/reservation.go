package flow

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ReserveStatus tags the outcome of a reservation attempt
type ReserveStatus int

const (
	Booked ReserveStatus = iota
	Conflict
	Invalid
	Failed
)

func (s ReserveStatus) String() string {
	switch s {
	case Booked:
		return "booked"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ReserveOutcome is returned for every attempt. A conflict is an expected
// outcome, not an error. Catalog is set only for Conflict.
type ReserveOutcome struct {
	Status  ReserveStatus
	Booking *models.Booking
	Catalog *CatalogResult
	Message string
	Err     error
}

var contentionPattern = regexp.MustCompile(`(?i)already\s+(booked|taken|reserved)|\bunavailable\b|no longer available|not available`)

// IsContention reports whether err means another attendee got the unit first.
// It is the only place that classifies conflicts.
func IsContention(err error) bool {
	if errors.Is(err, models.ErrUnitTaken) {
		return true
	}
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict || apiErr.Code == "unit_taken" {
		return true
	}
	// Only client errors are matched by message so a 503 "Service Unavailable" is not a conflict
	if apiErr.StatusCode < 400 || apiErr.StatusCode >= 500 {
		return false
	}
	return contentionPattern.MatchString(apiErr.Message)
}

// Reserver submits selections and recovers from contention
type Reserver struct {
	api     ReserveAPI
	catalog *CatalogReader
	logger  *logrus.Logger
}

// NewReserver creates a reserver
func NewReserver(api ReserveAPI, catalog *CatalogReader, logger *logrus.Logger) *Reserver {
	return &Reserver{api: api, catalog: catalog, logger: logger}
}

// Reserve tries to claim the selected unit. On conflict the unit is cleared,
// the facility kept and the catalog re-read into the selector. On any other
// failure the selection is left as it was.
func (r *Reserver) Reserve(ctx context.Context, sel *Selector, eventID uuid.UUID, pricing models.PricingCategory) ReserveOutcome {
	req, err := sel.ReserveRequest(eventID, pricing)
	if err != nil {
		return ReserveOutcome{Status: Invalid, Message: UserMessage(err), Err: err}
	}

	booking, err := r.api.Reserve(ctx, req)
	if err == nil {
		r.logger.WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"facility_id": booking.FacilityID,
			"kind":        booking.Kind,
		}).Info("Unit reserved")
		return ReserveOutcome{Status: Booked, Booking: booking}
	}

	if !IsContention(err) {
		r.logger.WithFields(logrus.Fields{
			"event_id":    eventID,
			"facility_id": req.FacilityID,
		}).WithError(err).Warn("Reservation failed")
		return ReserveOutcome{Status: Failed, Message: UserMessage(err), Err: err}
	}

	r.logger.WithFields(logrus.Fields{
		"event_id":    eventID,
		"facility_id": req.FacilityID,
	}).Info("Reservation lost to another attendee, refreshing catalog")

	sel.ClearUnit()
	result := r.catalog.Read(ctx, eventID, sel.Kind())
	if result.Status != CatalogUnavailable {
		sel.Refresh(result.Facilities)
	}

	return ReserveOutcome{
		Status:  Conflict,
		Catalog: &result,
		Message: conflictMessage(sel.Kind()),
		Err:     err,
	}
}

func conflictMessage(kind models.AccommodationKind) string {
	if kind == models.AccommodationHotel {
		return "That room was just booked by someone else. Please pick another one."
	}
	return "That bed was just booked by someone else. Please pick another one."
}
