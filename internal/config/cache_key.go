package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnswersKey returns the hash of autosaved answers of a session,
// field = question ID, value = raw JSON response.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("assessment:%s:answers", sessionID)
}

// SessionEventsChannel returns the Redis PubSub channel name for a session monitor
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("assessment:%s:events", sessionID)
}

// RateLimitKey returns the counter key of a rate-limit window
func (r *CacheKeyStruct) RateLimitKey(scope string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", scope, window)
}

var CacheKey = NewCacheKeyStruct()
