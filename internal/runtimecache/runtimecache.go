// Package runtimecache is the zero-latency runtime tag-value cache backing
// registry.ExecContext.RuntimeTagValue. A local TTL layer answers every read
// in-process with no I/O; a Redis layer, when configured, makes recent
// values visible across engine workers without forcing every node through
// the control store.
package runtimecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tagflow/engine/infrastructure/cache"
	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/tagvalue"
)

// defaultTTL bounds how long a value survives in the local layer without a
// refresh. It is deliberately short: a stale runtime value is worse than a
// cache miss, since TagInput falls back to the control store on a miss.
const defaultTTL = 30 * time.Second

// Cache is the runtime tag-value cache. The zero value is not usable; build
// one with New.
type Cache struct {
	local *cache.TTLCache
	redis *redis.Client
	ttl   time.Duration
}

// New returns a Cache fronted by an in-process TTL layer. redisClient may be
// nil, in which case the cache never leaves this process.
func New(redisClient *redis.Client) *Cache {
	return &Cache{
		local: cache.NewTTLCache(defaultTTL),
		redis: redisClient,
		ttl:   defaultTTL,
	}
}

// wireValue is the JSON-serializable projection of a tagvalue.TagValue used
// both for the local cache entry and the Redis payload.
type wireValue struct {
	Number     *float64  `json:"number,omitempty"`
	Text       *string   `json:"text,omitempty"`
	Structured any       `json:"structured,omitempty"`
	Quality    uint8     `json:"quality"`
	Timestamp  time.Time `json:"timestamp"`
}

func toWire(tv tagvalue.TagValue) wireValue {
	return wireValue{
		Number:     tv.Value.Number,
		Text:       tv.Value.Text,
		Structured: tv.Value.Structured,
		Quality:    uint8(tv.Quality),
		Timestamp:  tv.Timestamp,
	}
}

func fromWire(w wireValue) tagvalue.TagValue {
	return tagvalue.TagValue{
		Value:     tagvalue.Value{Number: w.Number, Text: w.Text, Structured: w.Structured},
		Quality:   quality.Code(w.Quality),
		Timestamp: w.Timestamp,
	}
}

// Get is the hot path every node's RuntimeTagValue call runs through: a
// single map lookup, never network I/O. A miss here does not mean the tag
// has no value, only that nothing has refreshed it recently; callers fall
// back to a time-series query.
func (c *Cache) Get(tagID string) (tagvalue.TagValue, bool) {
	v, ok := c.local.Get(context.Background(), tagID)
	if !ok {
		return tagvalue.TagValue{}, false
	}
	w, ok := v.(wireValue)
	if !ok {
		return tagvalue.TagValue{}, false
	}
	return fromWire(w), true
}

// Set updates the local layer and, if Redis is configured, writes through
// asynchronously so a slow or unavailable Redis never adds latency to the
// scan cycle that called Set.
func (c *Cache) Set(tagID string, tv tagvalue.TagValue) {
	w := toWire(tv)
	c.local.Set(context.Background(), tagID, w)
	if c.redis == nil {
		return
	}
	go c.writeThrough(tagID, w)
}

func (c *Cache) writeThrough(tagID string, w wireValue) {
	raw, err := json.Marshal(w)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.redis.Set(ctx, redisKey(tagID), raw, c.ttl)
}

// Warm pulls tagID from Redis into the local layer, for use when a worker
// starts cold and wants the last known value before its own scan cycle has
// produced one. It is not on RuntimeTagValue's hot path.
func (c *Cache) Warm(ctx context.Context, tagID string) (tagvalue.TagValue, bool) {
	if c.redis == nil {
		return tagvalue.TagValue{}, false
	}
	raw, err := c.redis.Get(ctx, redisKey(tagID)).Bytes()
	if err != nil {
		return tagvalue.TagValue{}, false
	}
	var w wireValue
	if err := json.Unmarshal(raw, &w); err != nil {
		return tagvalue.TagValue{}, false
	}
	c.local.Set(ctx, tagID, w)
	return fromWire(w), true
}

func redisKey(tagID string) string { return "tagflow:runtime:" + tagID }
