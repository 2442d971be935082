package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// CacheService is the redis-backed display cache. Seat gauges are
// advisory only; the transactional path never consults them.
type CacheService interface {
	// Seat availability gauge (display path)
	GetAvailableSpots(ctx context.Context, classID uuid.UUID) (int, error)
	SetAvailableSpots(ctx context.Context, classID uuid.UUID, spots int, ttl time.Duration) error
	DeleteAvailableSpots(ctx context.Context, classID uuid.UUID) error

	// Cached user booking lists
	GetUserBookings(ctx context.Context, userID uuid.UUID) (json.RawMessage, error)
	SetUserBookings(ctx context.Context, userID uuid.UUID, data interface{}, ttl time.Duration) error
	InvalidateUserBookings(ctx context.Context, userID uuid.UUID) error

	// Generic operations
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	GetClient() redis.UniversalClient
	Health(ctx context.Context) error
	Close() error
}
