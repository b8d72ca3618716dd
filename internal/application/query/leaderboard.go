package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD QUERIES
// Three boards: cumulative experience, current check-in streak, lifetime
// check-in count. Every board is a full recompute over the ledger; the short
// cache TTL lets the refresh job and on-demand ranking buttons share one
// compute.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBoardSize is the row count when the query does not set one.
const DefaultBoardSize = 10

// MaxBoardSize caps a single rendered board.
const MaxBoardSize = 50

// BoardCache stores computed board snapshots. Get returns (nil, nil) on a
// miss.
type BoardCache interface {
	Get(ctx context.Context, board ranking.Board) (*ranking.Leaderboard, error)
	Put(ctx context.Context, lb *ranking.Leaderboard) error
	Invalidate(ctx context.Context, boards ...ranking.Board) error
}

// GetLeaderboardQuery selects the board.
type GetLeaderboardQuery struct {
	Board ranking.Board
	Limit int

	// At anchors the streak board; zero means now.
	At time.Time

	// Bypass skips the cache. The refresh job sets it so a stale snapshot
	// never feeds the next snapshot.
	Bypass bool
}

// Validate validates the query and fills defaults.
func (q *GetLeaderboardQuery) Validate() error {
	switch q.Board {
	case ranking.BoardExperience, ranking.BoardStreak, ranking.BoardAttendance:
	default:
		return shared.NewDomainError("query", "GetLeaderboard", shared.ErrInvalidInput,
			fmt.Sprintf("unknown board %q", q.Board))
	}
	if q.Limit <= 0 {
		q.Limit = DefaultBoardSize
	}
	if q.Limit > MaxBoardSize {
		q.Limit = MaxBoardSize
	}
	if q.At.IsZero() {
		q.At = timeutil.Now()
	}
	return nil
}

// LeaderboardHandler computes the boards.
type LeaderboardHandler struct {
	memberRepo  member.Repository
	ledgerStore ledger.Store
	cache       BoardCache // nil disables caching
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(memberRepo member.Repository, ledgerStore ledger.Store, cache BoardCache) *LeaderboardHandler {
	return &LeaderboardHandler{
		memberRepo:  memberRepo,
		ledgerStore: ledgerStore,
		cache:       cache,
	}
}

// Handle returns the requested board, from cache when fresh enough.
func (h *LeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*ranking.Leaderboard, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil && !q.Bypass {
		cached, err := h.cache.Get(ctx, q.Board)
		if err == nil && cached != nil {
			return truncate(cached, q.Limit), nil
		}
	}

	var (
		lb  *ranking.Leaderboard
		err error
	)
	switch q.Board {
	case ranking.BoardExperience:
		lb, err = h.computeExperience(ctx, q.Limit)
	case ranking.BoardStreak:
		lb, err = h.computeStreak(ctx, timeutil.DateOf(q.At), q.Limit)
	case ranking.BoardAttendance:
		lb, err = h.computeAttendance(ctx, q.Limit)
	}
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		// A failed cache write only costs the next caller a recompute.
		_ = h.cache.Put(ctx, lb)
	}

	return lb, nil
}

// InvalidateBoards drops cached snapshots so the next read recomputes. XP
// mutations call it to keep an already-cached board from outliving the
// change for a full TTL.
func (h *LeaderboardHandler) InvalidateBoards(ctx context.Context, boards ...ranking.Board) error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Invalidate(ctx, boards...)
}

// computeExperience ranks members by cumulative XP. Row order comes from
// the repository, which breaks ties by registration time.
func (h *LeaderboardHandler) computeExperience(ctx context.Context, limit int) (*ranking.Leaderboard, error) {
	members, err := h.memberRepo.TopByExperience(ctx, limit)
	if err != nil {
		return nil, err
	}

	lb := &ranking.Leaderboard{Board: ranking.BoardExperience}
	for i, m := range members {
		tier := member.TierOf(m.Experience)
		lb.Entries = append(lb.Entries, ranking.Entry{
			Rank:        i + 1,
			UserID:      m.ID,
			DisplayName: m.DisplayName,
			Score:       m.Experience.Int(),
			Level:       m.Level(),
			TierEmoji:   tier.Emoji,
			TierName:    tier.Name,
		})
	}
	return lb, nil
}

// computeStreak ranks every attendee by current check-in streak. Members
// whose streak lapsed are dropped rather than listed at zero.
func (h *LeaderboardHandler) computeStreak(ctx context.Context, today timeutil.Date, limit int) (*ranking.Leaderboard, error) {
	byUser, err := h.ledgerStore.AttendanceDatesByUser(ctx)
	if err != nil {
		return nil, err
	}
	names, err := h.displayNames(ctx)
	if err != nil {
		return nil, err
	}

	lb := &ranking.Leaderboard{Board: ranking.BoardStreak}
	for userID, dates := range byUser {
		streak := ledger.ComputeStreak(today, dates)
		if streak == 0 {
			continue
		}
		lb.Entries = append(lb.Entries, ranking.Entry{
			UserID:      userID,
			DisplayName: names[userID],
			Score:       streak,
		})
	}

	rankEntries(lb, limit)
	return lb, nil
}

// computeAttendance ranks every attendee by lifetime check-in count.
func (h *LeaderboardHandler) computeAttendance(ctx context.Context, limit int) (*ranking.Leaderboard, error) {
	counts, err := h.ledgerStore.AttendanceCounts(ctx)
	if err != nil {
		return nil, err
	}
	names, err := h.displayNames(ctx)
	if err != nil {
		return nil, err
	}

	lb := &ranking.Leaderboard{Board: ranking.BoardAttendance}
	for userID, count := range counts {
		lb.Entries = append(lb.Entries, ranking.Entry{
			UserID:      userID,
			DisplayName: names[userID],
			Score:       count,
		})
	}

	rankEntries(lb, limit)
	return lb, nil
}

// displayNames maps every registered member to its display name. Attendees
// without a profile row keep an empty name and render with the
// unknown-member fallback.
func (h *LeaderboardHandler) displayNames(ctx context.Context) (map[string]string, error) {
	members, err := h.memberRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}
	return names, nil
}

// rankEntries sorts by score, assigns ranks, and truncates. The user-id
// tiebreak keeps repeated recomputes stable.
func rankEntries(lb *ranking.Leaderboard, limit int) {
	sort.Slice(lb.Entries, func(i, j int) bool {
		if lb.Entries[i].Score != lb.Entries[j].Score {
			return lb.Entries[i].Score > lb.Entries[j].Score
		}
		return lb.Entries[i].UserID < lb.Entries[j].UserID
	})
	if len(lb.Entries) > limit {
		lb.Entries = lb.Entries[:limit]
	}
	for i := range lb.Entries {
		lb.Entries[i].Rank = i + 1
	}
}

func truncate(lb *ranking.Leaderboard, limit int) *ranking.Leaderboard {
	if len(lb.Entries) <= limit {
		return lb
	}
	cut := *lb
	cut.Entries = lb.Entries[:limit]
	return &cut
}
