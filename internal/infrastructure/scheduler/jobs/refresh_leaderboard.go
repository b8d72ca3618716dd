// Package jobs contains the scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/application/query"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// Recomputes every board on a fixed interval, repopulates the cache, and
// re-renders the pinned leaderboard message. On-demand ranking buttons then
// hit the warm cache instead of recomputing.
// ══════════════════════════════════════════════════════════════════════════════

// PinnedBoard renders a board snapshot into the community's pinned message,
// recreating the message when the stored reference is gone.
type PinnedBoard interface {
	Render(ctx context.Context, lb *ranking.Leaderboard) error
}

// RefreshLeaderboardConfig configures the refresh job.
type RefreshLeaderboardConfig struct {
	// Boards to recompute each run. The first one is rendered into the
	// pinned message.
	Boards []ranking.Board

	// BoardSize is the row count per board.
	BoardSize int

	// Timeout bounds one full refresh.
	Timeout time.Duration
}

// DefaultRefreshLeaderboardConfig returns the production defaults.
func DefaultRefreshLeaderboardConfig() RefreshLeaderboardConfig {
	return RefreshLeaderboardConfig{
		Boards:    []ranking.Board{ranking.BoardExperience, ranking.BoardStreak, ranking.BoardAttendance},
		BoardSize: query.DefaultBoardSize,
		Timeout:   30 * time.Second,
	}
}

// RefreshLeaderboardJob is the periodic board refresh.
type RefreshLeaderboardJob struct {
	boards    *query.LeaderboardHandler
	pinned    PinnedBoard
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    RefreshLeaderboardConfig
}

// NewRefreshLeaderboardJob creates a new refresh job. The pinned renderer
// may be nil when no pinned message is configured.
func NewRefreshLeaderboardJob(
	boards *query.LeaderboardHandler,
	pinned PinnedBoard,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config RefreshLeaderboardConfig,
) *RefreshLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Boards) == 0 {
		config = DefaultRefreshLeaderboardConfig()
	}

	return &RefreshLeaderboardJob{
		boards:    boards,
		pinned:    pinned,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *RefreshLeaderboardJob) Name() string {
	return "refresh_leaderboard"
}

// Description returns a human-readable description.
func (j *RefreshLeaderboardJob) Description() string {
	return "Recomputes the leaderboards, refreshes the cache, and updates the pinned message"
}

// Run executes one refresh.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	started := time.Now()
	entries := 0
	names := make([]string, 0, len(j.config.Boards))

	for i, board := range j.config.Boards {
		lb, err := j.boards.Handle(ctx, query.GetLeaderboardQuery{
			Board:  board,
			Limit:  j.config.BoardSize,
			Bypass: true,
		})
		if err != nil {
			return fmt.Errorf("refresh %s board: %w", board, err)
		}

		entries += len(lb.Entries)
		names = append(names, string(board))

		if i == 0 && j.pinned != nil {
			if err := j.pinned.Render(ctx, lb); err != nil {
				// The next run retries; rankings stay queryable meanwhile.
				j.logger.Warn("pinned leaderboard render failed", "error", err)
			}
		}
	}

	_ = j.publisher.Publish(shared.NewLeaderboardRefreshedEvent(names, entries))

	j.logger.Info("leaderboards refreshed",
		"boards", len(names),
		"entries", entries,
		"duration", time.Since(started).String(),
	)

	return nil
}
