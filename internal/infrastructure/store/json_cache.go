package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// JSONCache stores JSON-encoded values in a KeyValueStore under a common
// prefix with a default TTL.
type JSONCache struct {
	kv     KeyValueStore
	prefix string
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

func NewJSONCache(kv KeyValueStore, prefix string, ttl time.Duration) *JSONCache {
	return &JSONCache{kv: kv, prefix: prefix, ttl: ttl}
}

// Get decodes the cached value into dest and reports whether it was present.
func (c *JSONCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.kv.Get(ctx, c.prefix+key)
	if errors.Is(err, ErrNotFound) {
		c.misses.Add(1)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get error: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	c.hits.Add(1)
	return true, nil
}

func (c *JSONCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.kv.Set(ctx, c.prefix+key, data, c.ttl); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *JSONCache) Delete(ctx context.Context, key string) error {
	return c.kv.Delete(ctx, c.prefix+key)
}

func (c *JSONCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
