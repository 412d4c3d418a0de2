// Package cache provides short-lived string key/value caches used to avoid
// repeated catalog lookups.
package cache

import (
	"context"
	"time"
)

// Cache stores string values with a TTL. Missing or expired keys are absent
// from GetMulti results; they are not errors.
type Cache interface {
	GetMulti(ctx context.Context, keys []string) (map[string]string, error)
	SetMulti(ctx context.Context, entries map[string]string, ttl time.Duration) error
}
