package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/redis/go-redis/v9"
)

// RedisCache shares resolved snapshots across storefront instances. TTL gets
// a small jitter so a popular service does not expire everywhere at once.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

func (r *RedisCache) Get(ctx context.Context, serviceID string) (catalog.Snapshot, error) {
	data, err := r.client.Get(ctx, cacheKey(serviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return catalog.Snapshot{}, ErrCacheMiss
	}
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("redis get failed: %w", err)
	}

	var snap catalog.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}
	return snap, nil
}

func (r *RedisCache) Set(ctx context.Context, serviceID string, snap catalog.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	if err := r.client.Set(ctx, cacheKey(serviceID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, serviceID string) error {
	if err := r.client.Del(ctx, cacheKey(serviceID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(serviceID string) string {
	return fmt.Sprintf("snapshot:%s", serviceID)
}
