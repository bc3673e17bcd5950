package flow

import (
	"context"
	"testing"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/eventlodge/accommodation-backend/pkg/apiclient"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCatalogReader_DistinguishesEmptyFromUnavailable(t *testing.T) {
	eventID := uuid.New()

	t.Run("ready", func(t *testing.T) {
		api := &fakeAPI{catalogFn: catalogOf(oneBedHostel(true).facility)}
		result := NewCatalogReader(api, testLogger()).Read(context.Background(), eventID, models.AccommodationHostel)

		assert.Equal(t, CatalogReady, result.Status)
		assert.Len(t, result.Facilities, 1)
		assert.False(t, result.Retryable())
	})

	t.Run("empty", func(t *testing.T) {
		api := &fakeAPI{catalogFn: catalogOf()}
		result := NewCatalogReader(api, testLogger()).Read(context.Background(), eventID, models.AccommodationHostel)

		assert.Equal(t, CatalogEmpty, result.Status)
		assert.NoError(t, result.Err)
		assert.NotEmpty(t, result.Message)
		assert.False(t, result.Retryable())
	})

	t.Run("unavailable", func(t *testing.T) {
		api := &fakeAPI{catalogFn: func(uuid.UUID, models.AccommodationKind) (*models.CatalogResponse, error) {
			return nil, &apiclient.APIError{StatusCode: 503, Message: "Service Unavailable"}
		}}
		result := NewCatalogReader(api, testLogger()).Read(context.Background(), eventID, models.AccommodationHotel)

		assert.Equal(t, CatalogUnavailable, result.Status)
		assert.Error(t, result.Err)
		assert.True(t, result.Retryable())
		assert.NotContains(t, result.Message, "Service Unavailable")
	})
}
