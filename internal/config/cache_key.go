package config

import "fmt"

// CacheKeyStruct builds every Redis key used by the service.
type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionProgressKey holds the autosaved cursor, palette and clock of a
// live session.
func (r *CacheKeyStruct) SessionProgressKey(sessionID string) string {
	return fmt.Sprintf("session:%s:progress", sessionID)
}

// SessionAnswersKey is a hash of question index to encoded answer.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// LeaderboardKey caches a rendered leaderboard for one viewer.
func (r *CacheKeyStruct) LeaderboardKey(testID, viewer string) string {
	return fmt.Sprintf("leaderboard:%s:%s", testID, viewer)
}

// SessionEventsChannel is the PubSub channel carrying session events.
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

var CacheKey = NewCacheKeyStruct()
