package flow

import (
	"context"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CatalogStatus distinguishes a usable catalog from an empty one and from a failed read
type CatalogStatus int

const (
	CatalogReady CatalogStatus = iota
	CatalogEmpty
	CatalogUnavailable
)

func (s CatalogStatus) String() string {
	switch s {
	case CatalogReady:
		return "ready"
	case CatalogEmpty:
		return "empty"
	case CatalogUnavailable:
		return "unavailable"
	}
	return "unknown"
}

const emptyCatalogMessage = "No accommodation has been listed for this event yet."

// CatalogResult is the outcome of one catalog read. Err is set only when
// Status is CatalogUnavailable.
type CatalogResult struct {
	Status     CatalogStatus
	Facilities []models.Facility
	Message    string
	Err        error
}

// Retryable reports whether the caller should offer a retry
func (r CatalogResult) Retryable() bool {
	return r.Status == CatalogUnavailable
}

// CatalogReader is the only path by which availability enters the client
type CatalogReader struct {
	api    CatalogAPI
	logger *logrus.Logger
}

// NewCatalogReader creates a catalog reader
func NewCatalogReader(api CatalogAPI, logger *logrus.Logger) *CatalogReader {
	return &CatalogReader{api: api, logger: logger}
}

// Read fetches facilities for an event and kind. It is safe to call at any time.
func (r *CatalogReader) Read(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) CatalogResult {
	resp, err := r.api.GetCatalog(ctx, eventID, kind)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"event_id": eventID,
			"kind":     kind,
		}).WithError(err).Warn("Catalog unavailable")
		return CatalogResult{Status: CatalogUnavailable, Message: UserMessage(err), Err: err}
	}

	if resp == nil || len(resp.Facilities) == 0 {
		return CatalogResult{Status: CatalogEmpty, Message: emptyCatalogMessage}
	}
	return CatalogResult{Status: CatalogReady, Facilities: resp.Facilities}
}
