// Package cachestore holds short-lived hints: gate redirect markers and
// cached session tokens. It is best-effort storage, never a source of
// truth, and is cleared proactively on sign-out.
package cachestore

import (
	"context"
	"time"
)

// Store is a TTL'd key-value store. Get returns ("", false) for missing or
// expired keys; implementations never surface storage failures to callers
// beyond the error return, and callers treat every error as a miss.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
