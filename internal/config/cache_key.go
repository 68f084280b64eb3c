package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RateLimitKey returns the counter key for a client within one fixed window.
func (r *CacheKeyStruct) RateLimitKey(client string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", client, window)
}

// AnonymousSessionSeenKey marks an anonymous token as recently registered so
// the database upsert can be skipped on hot paths.
func (r *CacheKeyStruct) AnonymousSessionSeenKey(token string) string {
	return fmt.Sprintf("anon_session:%s:seen", token)
}

var CacheKey = NewCacheKeyStruct()
