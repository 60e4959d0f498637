// Package cache is a Redis read-through JSON cache with per-scope version keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "raci:cache"

// Cache wraps Redis based caching with versioning controls. A nil Cache calls the loader directly.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New instantiates the cache helper.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(scope string) string {
	return keyPrefix + ":version:" + scope
}

// Version returns the current version of scope, initialising when missing.
func (c *Cache) Version(ctx context.Context, scope string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(scope), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(scope)).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a key under scope with the scope's current version.
func (c *Cache) BuildKey(ctx context.Context, scope string, parts ...string) (string, error) {
	joined := strings.Join(append([]string{keyPrefix, scope}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every key of scope by incrementing its version.
func (c *Cache) Bump(ctx context.Context, scopes ...string) error {
	if c == nil || c.client == nil {
		return nil
	}
	for _, s := range scopes {
		if err := c.client.Incr(ctx, versionKey(s)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// PlatformScope versions caches that span all tenants.
const PlatformScope = "platform"

// CompanyScope versions caches of one tenant.
func CompanyScope(companyID fmt.Stringer) string {
	return "company:" + companyID.String()
}
