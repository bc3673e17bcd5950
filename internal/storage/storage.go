// Package storage provides the small key-value stores that hold the booking
// client's durable state between runs.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventlodge/accommodation-backend/internal/cache"
	"github.com/eventlodge/accommodation-backend/internal/config"
)

// ErrNotFound is returned by Get when a key has never been written or was deleted
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable byte store keyed by string
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Open returns the backend selected by BOOKER_STATE_BACKEND
func Open(cfg *config.Config) (KV, error) {
	switch cfg.Client.StateBackend {
	case "", "file":
		return NewFileKV(cfg.Client.StateDir)
	case "redis":
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisKV(client, cfg.Redis.StatePrefix), nil
	}
	return nil, fmt.Errorf("unknown state backend: %s", cfg.Client.StateBackend)
}
