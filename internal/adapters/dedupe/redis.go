// Package dedupe remembers inbound message ids so redelivered webhooks are handled once.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "coursebridge:seen:"
)

// setter is the part of redis.Cmdable the deduper needs.
type setter interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisDeduper implements ports.MessageDeduper with SET NX and a TTL.
type RedisDeduper struct {
	client setter
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper on an existing client.
func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	return newRedisDeduper(client, ttl)
}

// NewRedisClient connects to the Redis server at addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func newRedisDeduper(client setter, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// FirstSeen records id and reports whether it was new.
func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+id, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recording message id: %w", err)
	}
	return ok, nil
}
