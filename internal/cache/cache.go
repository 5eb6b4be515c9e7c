// Package cache stores generated replies for a short time, keyed by prompt
// and session.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"
)

// DefaultTTL is how long a generated reply is reused.
const DefaultTTL = 10 * time.Second

const keyPrefix = "llm_cache:"

// Cache is a best-effort reply cache. Backend failures are reported as
// misses by Get and swallowed by Set; callers never see them.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, reply string, ttl time.Duration)
}

// Fingerprint derives the cache key for prompt within sessionID. The same
// prompt in two sessions yields two different keys.
func Fingerprint(prompt, sessionID string) string {
	sum := md5.Sum([]byte(prompt + ":" + sessionID))
	return keyPrefix + hex.EncodeToString(sum[:])
}
