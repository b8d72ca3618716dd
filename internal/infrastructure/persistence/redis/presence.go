package redis

import (
	"context"
)

const keyVoicePresence = "presence:voice"

// PresenceTracker maintains the set of members currently in tracked voice
// rooms. The admin raffle draws its pool from this set; it is rebuilt from
// gateway voice events and cleared on startup.
type PresenceTracker struct {
	cache *Cache
}

// NewPresenceTracker creates a new presence tracker.
func NewPresenceTracker(cache *Cache) *PresenceTracker {
	return &PresenceTracker{cache: cache}
}

// Enter marks a member as present in a tracked room.
func (t *PresenceTracker) Enter(ctx context.Context, userID string) error {
	return t.cache.Client().SAdd(ctx, keyVoicePresence, userID).Err()
}

// Leave marks a member as no longer present.
func (t *PresenceTracker) Leave(ctx context.Context, userID string) error {
	return t.cache.Client().SRem(ctx, keyVoicePresence, userID).Err()
}

// Present returns every member currently in a tracked room.
func (t *PresenceTracker) Present(ctx context.Context) ([]string, error) {
	return t.cache.Client().SMembers(ctx, keyVoicePresence).Result()
}

// Reset clears the set. Called on startup before re-syncing from the
// platform's current room occupancy.
func (t *PresenceTracker) Reset(ctx context.Context) error {
	return t.cache.Client().Del(ctx, keyVoicePresence).Err()
}
