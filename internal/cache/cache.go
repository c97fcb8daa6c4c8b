package cache

import (
	"context"
	"time"
)

// Cache is the JSON value cache used for short-lived read paths such as
// org balances.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
