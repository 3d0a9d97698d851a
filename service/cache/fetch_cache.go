/*
 * @module service/cache/fetch_cache
 * @description Memoized remote-fetch results keyed by (resource, limit), in-process by default with an optional redis backend
 * @architecture Cache-aside - callers consult the cache before the Socrata client and fill it after
 * @documentReference client/socrata_client.go
 * @stateFlow lookup -> miss -> fetch -> store; entries live at most one process lifetime
 * @rules Keys carry a per-process prefix so a restart invalidates everything; cache failures degrade to a miss, never to a request failure
 * @dependencies encoding/json, log/slog, os, sync, time, github.com/go-redis/redis/v8, github.com/google/uuid
 * @refs api/controllers/dataset_controller.go
 */

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"opendata-service/service/models"
)

// FetchCache memoizes fetched raw batches for one process lifetime. With
// REDIS_URL set it uses redis, otherwise an in-process map. The per-process
// key prefix makes stale entries from earlier processes unreachable.
type FetchCache struct {
	ttl    time.Duration
	prefix string

	mu    sync.RWMutex
	local map[string]localEntry

	rdb *redis.Client
}

type localEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewFetchCache builds a cache from the environment: REDIS_URL selects the
// backend, FETCH_CACHE_TTL_MINUTES overrides the 30 minute default.
func NewFetchCache() *FetchCache {
	c := &FetchCache{
		ttl:    30 * time.Minute,
		prefix: "opendata:fetch:" + uuid.NewString(),
		local:  make(map[string]localEntry),
	}

	if val := os.Getenv("FETCH_CACHE_TTL_MINUTES"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes > 0 {
			c.ttl = time.Duration(minutes) * time.Minute
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("fetch cache: invalid REDIS_URL, falling back to in-process cache", "error", err)
		} else {
			c.rdb = redis.NewClient(opts)
			slog.Info("fetch cache: using redis backend", "addr", opts.Addr)
		}
	}
	return c
}

func (c *FetchCache) key(resource string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, resource, limit)
}

// Get returns the cached batch for (resource, limit), or ok=false on a miss.
func (c *FetchCache) Get(ctx context.Context, resource string, limit int) (*models.RawBatch, bool) {
	key := c.key(resource, limit)

	var payload []byte
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				slog.Debug("fetch cache: redis get failed", "error", err)
			}
			return nil, false
		}
		payload = data
	} else {
		c.mu.RLock()
		entry, ok := c.local[key]
		c.mu.RUnlock()
		if !ok || time.Now().After(entry.expiresAt) {
			return nil, false
		}
		payload = entry.payload
	}

	var batch models.RawBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		slog.Debug("fetch cache: corrupt entry dropped", "key", key, "error", err)
		return nil, false
	}
	return &batch, true
}

// Put stores a batch for (resource, limit). Failures are logged and ignored.
func (c *FetchCache) Put(ctx context.Context, resource string, limit int, batch *models.RawBatch) {
	payload, err := json.Marshal(batch)
	if err != nil {
		slog.Debug("fetch cache: marshal failed", "error", err)
		return
	}
	key := c.key(resource, limit)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			slog.Debug("fetch cache: redis set failed", "error", err)
		}
		return
	}

	c.mu.Lock()
	c.local[key] = localEntry{payload: payload, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
