package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionEventsChannel returns the Redis PubSub channel for one session's events
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("casebook:session:%s:events", sessionID)
}

// MonitorChannel returns the Redis PubSub channel that carries every session's events
func (r *CacheKeyStruct) MonitorChannel() string {
	return "casebook:monitor"
}

var CacheKey = NewCacheKeyStruct()
