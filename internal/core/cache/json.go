package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// LoadJSON 以 JSON 形式缓存 load 的结果；缓存内容解不开时删 key 并回源
func LoadJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil || c.RDB == nil {
		return load(ctx)
	}
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		c.log.Warn("cache decode failed, reloading", zap.String("key", c.key(key)), zap.Error(err))
		c.Del(ctx, key)
		return load(ctx)
	}
	return out, nil
}
