package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCatalogCache_Key(t *testing.T) {
	c := NewCatalogCache(nil, time.Second, "catalog", quietLogger())
	eventID := uuid.MustParse("8b1f7c44-0a5e-4a53-9f59-0d1e5a2f3c11")

	assert.Equal(t, "catalog:8b1f7c44-0a5e-4a53-9f59-0d1e5a2f3c11:HOSTEL", c.Key(eventID, models.AccommodationHostel))
}

func TestCatalogCache_NilIsAlwaysMiss(t *testing.T) {
	var c *CatalogCache
	ctx := context.Background()
	eventID := uuid.New()

	c.Set(ctx, eventID, models.AccommodationHotel, []models.Facility{{Name: "Grand"}})
	_, ok := c.Get(ctx, eventID, models.AccommodationHotel)
	assert.False(t, ok)
	c.Invalidate(ctx, eventID, models.AccommodationHotel)
}

func TestCatalogCache_UnreachableRedisDegradesToMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewCatalogCache(client, time.Second, "catalog", quietLogger())
	ctx := context.Background()
	eventID := uuid.New()

	c.Set(ctx, eventID, models.AccommodationHostel, []models.Facility{{Name: "North Hall"}})
	_, ok := c.Get(ctx, eventID, models.AccommodationHostel)
	assert.False(t, ok)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(config.RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	assert.ErrorContains(t, err, "failed to ping redis")
}
