// Package cache keeps short-lived JSON snapshots of profiles and feed pages
// in Redis. The snapshots are advisory: staleness up to the validity window
// is tolerated for display, and every mutating action invalidates the keys
// it touches instead of waiting for the window to expire. A nil *Cache (or
// an unreachable Redis) degrades to direct queries.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotTTL is the validity window for cached snapshots.
const SnapshotTTL = 5 * time.Minute

type Cache struct {
	rdb *redis.Client
}

// New connects to Redis and pings it once. An error here means the cache is
// unavailable; callers may run without one.
func New(addr, password string, db int) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// ProfileKey is the snapshot key for a user profile.
func ProfileKey(userID uint) string { return fmt.Sprintf("whispr:profile:%d", userID) }

// FeedKey is the snapshot key for a viewer's assembled feed page.
func FeedKey(viewerID uint) string { return fmt.Sprintf("whispr:feed:%d", viewerID) }

// Get unmarshals a cached snapshot into dest. Returns false on a miss or any
// Redis error; misses are not distinguished from outages.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

// Set stores a snapshot with the standard validity window. Failures are
// ignored; the cache is best effort.
func (c *Cache) Set(ctx context.Context, key string, v any) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, data, SnapshotTTL)
}

// Invalidate drops snapshots after a mutation.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	c.rdb.Del(ctx, keys...)
}
