package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/noshowrisk/internal/domain/providers"
	redisclient "github.com/zatekoja/noshowrisk/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/noshowrisk/pkg/errors"
)

// RedisAdapter implements the CacheProvider interface using Redis. Every key
// is stored under the adapter's namespace.
type RedisAdapter struct {
	client    *redisclient.Client
	namespace string
}

var _ providers.CacheProvider = (*RedisAdapter)(nil)

// NewRedisAdapter creates a new Redis cache adapter
func NewRedisAdapter(client *redisclient.Client, namespace string) *RedisAdapter {
	return &RedisAdapter{
		client:    client,
		namespace: namespace,
	}
}

func (a *RedisAdapter) key(key string) string {
	if a.namespace == "" {
		return key
	}
	return a.namespace + ":" + key
}

// Get retrieves a value from cache. A miss is reported as a NotFound error.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Client().Get(ctx, a.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("cache key %s", key))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return result, nil
}

// Set stores a value in cache with expiration
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	expiration := time.Duration(expirationSeconds) * time.Second
	if err := a.client.Client().Set(ctx, a.key(key), value, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Client().Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Purge deletes every key under the namespace and returns how many were removed
func (a *RedisAdapter) Purge(ctx context.Context) (int, error) {
	if a.namespace == "" {
		return 0, apperrors.NewValidationError("refusing to purge an unnamespaced cache")
	}

	removed := 0
	iter := a.client.Client().Scan(ctx, 0, a.namespace+":*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := a.client.Client().Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("failed to purge cache: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cache: %w", err)
	}
	return removed, flush()
}
