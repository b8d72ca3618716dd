package redis

import (
	"context"
	"errors"
)

// Message-ref keys. The pinned leaderboard message and the per-member
// profile messages are edited in place; losing a ref is benign (the
// renderer recreates the message), so refs live here rather than in
// postgres.
const (
	keyPinnedLeaderboard = "msgref:leaderboard"
	keyProfilePrefix     = "msgref:profile:"
)

// MessageRefStore remembers which platform message each long-lived view
// is rendered into.
type MessageRefStore struct {
	cache *Cache
}

// NewMessageRefStore creates a new message-ref store.
func NewMessageRefStore(cache *Cache) *MessageRefStore {
	return &MessageRefStore{cache: cache}
}

// SetPinnedLeaderboard stores the pinned leaderboard message ref.
func (s *MessageRefStore) SetPinnedLeaderboard(ctx context.Context, ref string) error {
	return s.cache.SetString(ctx, keyPinnedLeaderboard, ref, 0)
}

// PinnedLeaderboard returns the pinned leaderboard message ref, or "" when
// none is recorded.
func (s *MessageRefStore) PinnedLeaderboard(ctx context.Context) (string, error) {
	ref, err := s.cache.GetString(ctx, keyPinnedLeaderboard)
	if errors.Is(err, ErrCacheMiss) {
		return "", nil
	}
	return ref, err
}

// SetProfile stores a member's profile message ref.
func (s *MessageRefStore) SetProfile(ctx context.Context, userID, ref string) error {
	return s.cache.SetString(ctx, keyProfilePrefix+userID, ref, 0)
}

// Profile returns a member's profile message ref, or "" when none is
// recorded.
func (s *MessageRefStore) Profile(ctx context.Context, userID string) (string, error) {
	ref, err := s.cache.GetString(ctx, keyProfilePrefix+userID)
	if errors.Is(err, ErrCacheMiss) {
		return "", nil
	}
	return ref, err
}

// ClearProfile forgets a member's profile message ref.
func (s *MessageRefStore) ClearProfile(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, keyProfilePrefix+userID)
}
