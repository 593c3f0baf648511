// Package resultcache provides a Redis-backed scenario.ResultCache, so
// calculated scenario outputs survive between CLI runs and can be shared by
// several processes working on the same model.
package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealmodel/dealmodel/pkg/fieldpath"
	"github.com/dealmodel/dealmodel/pkg/scenario"
)

const (
	keyPrefix      = "dealmodel:results:"
	defaultTimeout = 2 * time.Second
)

var _ scenario.ResultCache = (*Cache)(nil)

// Cache stores outputs as JSON strings under "dealmodel:results:<model>:<id>".
// Redis failures are logged and treated as misses.
type Cache struct {
	client  *redis.Client
	modelID string
	ttl     time.Duration
	timeout time.Duration
}

// New creates a cache scoped to one model. A zero ttl keeps entries until
// they are deleted.
func New(client *redis.Client, modelID string, ttl time.Duration) *Cache {
	return &Cache{client: client, modelID: modelID, ttl: ttl, timeout: defaultTimeout}
}

func (c *Cache) key(id string) string {
	return keyPrefix + c.modelID + ":" + id
}

func (c *Cache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Get returns the cached outputs for id.
func (c *Cache) Get(id string) (fieldpath.Outputs, bool) {
	ctx, cancel := c.ctx()
	defer cancel()

	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("result cache get failed", "key", c.key(id), "error", err)
		}
		return nil, false
	}
	var out fieldpath.Outputs
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("result cache entry unreadable", "key", c.key(id), "error", err)
		return nil, false
	}
	return out, true
}

// Put stores outputs for id. Outputs that cannot be encoded as JSON (NaN or
// infinite values) are not cached.
func (c *Cache) Put(id string, out fieldpath.Outputs) {
	data, err := json.Marshal(out)
	if err != nil {
		slog.Debug("result not cacheable", "scenario", id, "error", err)
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()

	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		slog.Warn("result cache put failed", "key", c.key(id), "error", err)
	}
}

// Delete drops the given ids.
func (c *Cache) Delete(ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	ctx, cancel := c.ctx()
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("result cache delete failed", "keys", keys, "error", err)
	}
}

// Clear drops every entry of the model.
func (c *Cache) Clear() {
	ctx, cancel := c.ctx()
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.key("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("result cache scan failed", "model", c.modelID, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("result cache clear failed", "model", c.modelID, "error", err)
	}
}
