// Package cache holds the byte-level cache contract used by the services.
package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort key/value store. A miss is (nil, false, nil).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TrackKey is where the public tracking snapshot of an order is cached for the
// given generation. An empty generation means the order was never invalidated.
func TrackKey(trackingCode, generation string) string {
	if generation == "" {
		return "order:" + trackingCode + ":track"
	}
	return "order:" + trackingCode + ":track:" + generation
}

// GenerationKey holds the current snapshot generation of an order.
func GenerationKey(trackingCode string) string {
	return "order:" + trackingCode + ":gen"
}
