// Package cache holds the Redis-backed read-through cache for the
// accommodation catalog. Every failure degrades to a cache miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient connects to Redis and pings it with the configured dial timeout
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// CatalogCache stores catalog snapshots per event and kind.
// A nil *CatalogCache is valid and never hits.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
}

// NewCatalogCache creates a catalog cache on top of an existing client
func NewCatalogCache(client *redis.Client, ttl time.Duration, prefix string, logger *logrus.Logger) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl, prefix: prefix, logger: logger}
}

// Key returns the cache key for an event and kind
func (c *CatalogCache) Key(eventID uuid.UUID, kind models.AccommodationKind) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, eventID, kind)
}

// Get returns the cached facilities, or false on miss or error
func (c *CatalogCache) Get(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) ([]models.Facility, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.Key(eventID, kind)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Catalog cache read failed")
		return nil, false
	}

	var facilities []models.Facility
	if err := json.Unmarshal(raw, &facilities); err != nil {
		c.logger.WithError(err).Warn("Discarding unreadable catalog cache entry")
		return nil, false
	}
	return facilities, true
}

// Set stores a catalog snapshot with the configured TTL
func (c *CatalogCache) Set(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind, facilities []models.Facility) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(facilities)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.Key(eventID, kind), raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Catalog cache write failed")
	}
}

// Invalidate drops the snapshot so the next read goes to the database
func (c *CatalogCache) Invalidate(ctx context.Context, eventID uuid.UUID, kind models.AccommodationKind) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.Key(eventID, kind)).Err(); err != nil {
		c.logger.WithFields(logrus.Fields{
			"event_id": eventID,
			"kind":     kind,
		}).WithError(err).Warn("Catalog cache invalidation failed")
	}
}
