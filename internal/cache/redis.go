package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

var _ Cache = (*Redis)(nil)

// Redis is a Cache shared between server replicas. Keys are namespaced with
// prefix.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps client. prefix is prepended to every key.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// GetMulti fetches keys with a single MGET.
func (r *Redis) GetMulti(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}

	vals, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget")
	}

	out := make(map[string]string, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// SetMulti writes entries in one pipeline, each with its own expiry.
func (r *Redis) SetMulti(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if len(entries) == 0 || ttl <= 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for k, v := range entries {
		pipe.Set(ctx, r.prefix+k, v, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "pipeline set")
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
