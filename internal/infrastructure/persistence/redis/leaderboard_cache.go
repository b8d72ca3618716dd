package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
)

// TTLLeaderboard keeps cached board snapshots slightly longer than the
// refresh interval, so the 60-second refresh job and on-demand ranking
// buttons share one recompute.
const TTLLeaderboard = 90 * time.Second

const keyLeaderboard = "leaderboard:board:"

// LeaderboardCache stores computed leaderboard snapshots.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new leaderboard cache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

func boardKey(board ranking.Board) string {
	return keyLeaderboard + string(board)
}

// Put stores a board snapshot.
func (c *LeaderboardCache) Put(ctx context.Context, lb *ranking.Leaderboard) error {
	if lb == nil {
		return fmt.Errorf("leaderboard_cache: nil leaderboard")
	}
	return c.cache.Set(ctx, boardKey(lb.Board), lb, TTLLeaderboard)
}

// Get returns a cached board snapshot, or (nil, nil) on a miss. A cache
// miss is expected traffic, not an error.
func (c *LeaderboardCache) Get(ctx context.Context, board ranking.Board) (*ranking.Leaderboard, error) {
	var lb ranking.Leaderboard
	err := c.cache.Get(ctx, boardKey(board), &lb)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lb, nil
}

// Invalidate drops cached snapshots for the given boards.
func (c *LeaderboardCache) Invalidate(ctx context.Context, boards ...ranking.Board) error {
	keys := make([]string, len(boards))
	for i, b := range boards {
		keys[i] = boardKey(b)
	}
	return c.cache.Delete(ctx, keys...)
}
