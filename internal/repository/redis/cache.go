package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
	"github.com/dzekuza/pav4-sub004/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of go-redis commands the stores use.
// *redis.Client satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// tombstone marks a domain known to have no business.
const tombstone = "-"

// BusinessCache caches business lookups by normalized domain.
// Misses are cached too so unknown domains do not hit Postgres on every click.
type BusinessCache struct {
	client Client
	ttl    time.Duration
}

// NewBusinessCache creates a new Redis business cache
func NewBusinessCache(client Client, ttl time.Duration) *BusinessCache {
	return &BusinessCache{
		client: client,
		ttl:    ttl,
	}
}

func businessKey(host string) string {
	return fmt.Sprintf("business:domain:%s", domain.NormalizeDomain(host))
}

// GetBusiness returns the cached business for host. found is false on a
// cache miss; a cached negative lookup returns (nil, true, nil).
func (c *BusinessCache) GetBusiness(ctx context.Context, host string) (business *domain.Business, found bool, err error) {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	data, err := c.client.Get(ctx, businessKey(host)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	metrics.RecordCacheHit()

	if data == tombstone {
		return nil, true, nil
	}

	var b domain.Business
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached business: %w", err)
	}
	return &b, true, nil
}

// SetBusiness stores business under host. A nil business stores a tombstone.
func (c *BusinessCache) SetBusiness(ctx context.Context, host string, business *domain.Business) error {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}()

	var value interface{} = tombstone
	if business != nil {
		data, err := json.Marshal(business)
		if err != nil {
			return fmt.Errorf("failed to marshal business: %w", err)
		}
		value = data
	}

	if err := c.client.Set(ctx, businessKey(host), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// DeleteBusiness drops the cached entry for host
func (c *BusinessCache) DeleteBusiness(ctx context.Context, host string) error {
	if err := c.client.Del(ctx, businessKey(host)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// InitRedis creates a new Redis client
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
