package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"studio-booking/internal/config"
	interfaces "studio-booking/internal/interfaces/infrastructure"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ interfaces.CacheService = (*RedisCache)(nil)

// RedisCache is the display cache: seat gauges and cached list
// responses. Nothing here participates in booking transactions.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(cfg *config.CacheConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	return &RedisCache{client: rdb}
}

func (r *RedisCache) GetAvailableSpots(ctx context.Context, classID uuid.UUID) (int, error) {
	key := spotsKey(classID)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, fmt.Errorf("available spots not cached")
		}
		return -1, fmt.Errorf("failed to get spots from cache: %w", err)
	}

	spots, err := strconv.Atoi(val)
	if err != nil {
		return -1, fmt.Errorf("invalid spots value in cache: %w", err)
	}

	return spots, nil
}

func (r *RedisCache) SetAvailableSpots(ctx context.Context, classID uuid.UUID, spots int, ttl time.Duration) error {
	if err := r.client.Set(ctx, spotsKey(classID), spots, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set spots in cache: %w", err)
	}
	return nil
}

func (r *RedisCache) DeleteAvailableSpots(ctx context.Context, classID uuid.UUID) error {
	if err := r.client.Del(ctx, spotsKey(classID)).Err(); err != nil {
		return fmt.Errorf("failed to delete spot gauge: %w", err)
	}
	return nil
}

func (r *RedisCache) GetUserBookings(ctx context.Context, userID uuid.UUID) (json.RawMessage, error) {
	val, err := r.client.Get(ctx, userBookingsKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("user bookings not cached")
		}
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	return json.RawMessage(val), nil
}

func (r *RedisCache) SetUserBookings(ctx context.Context, userID uuid.UUID, data interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal user bookings: %w", err)
	}

	if err := r.client.Set(ctx, userBookingsKey(userID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set user bookings: %w", err)
	}
	return nil
}

func (r *RedisCache) InvalidateUserBookings(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Del(ctx, userBookingsKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate user bookings: %w", err)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("key not cached")
		}
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) GetClient() redis.UniversalClient {
	return r.client
}

func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func spotsKey(classID uuid.UUID) string {
	return fmt.Sprintf("class:spots:%s", classID.String())
}

func userBookingsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:bookings:%s", userID.String())
}
