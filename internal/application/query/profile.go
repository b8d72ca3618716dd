package query

import (
	"context"
	"errors"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// The per-member profile card: level, tier, progress toward the next
// threshold, and the current week's and month's activity. The gateway
// re-renders this on every XP change.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressBarWidth is the cell count of the rendered progress bar.
const ProgressBarWidth = 20

// GetProfileQuery identifies the member and the reference instant.
type GetProfileQuery struct {
	UserID string

	// At anchors the week, month, and streak; zero means now.
	At time.Time
}

// Validate validates the query and fills defaults.
func (q *GetProfileQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_profile: user_id is required")
	}
	if q.At.IsZero() {
		q.At = timeutil.Now()
	}
	return nil
}

// GetProfileResult is the rendered card's data.
type GetProfileResult struct {
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name"`
	XP          int             `json:"xp"`
	Level       int             `json:"level"`
	Tier        member.Tier     `json:"tier"`
	Progress    member.Progress `json:"progress"`
	Bar         string          `json:"bar"`

	Streak  int         `json:"streak"`
	Weekly  PeriodStats `json:"weekly"`
	Monthly PeriodStats `json:"monthly"`
}

// ProfileHandler answers profile queries.
type ProfileHandler struct {
	memberRepo  member.Repository
	ledgerStore ledger.Store
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(memberRepo member.Repository, ledgerStore ledger.Store) *ProfileHandler {
	return &ProfileHandler{memberRepo: memberRepo, ledgerStore: ledgerStore}
}

// Handle builds the profile card. A member the engine has never credited
// gets a level-one zero-XP card rather than an error.
func (h *ProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*GetProfileResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result := &GetProfileResult{UserID: q.UserID}

	m, err := h.memberRepo.GetByID(ctx, q.UserID)
	switch {
	case err == nil:
		result.DisplayName = m.DisplayName
		result.XP = m.Experience.Int()
	case errors.Is(err, shared.ErrNotFound):
		// fresh card
	default:
		return nil, err
	}

	xp := member.XP(result.XP)
	result.Level = member.LevelOf(xp)
	result.Tier = member.TierOf(xp)
	result.Progress = member.ProgressWithinLevel(xp)
	result.Bar = result.Progress.Bar(ProgressBarWidth)

	date := timeutil.DateOf(q.At)
	week := timeutil.WeekRange(date)
	month := timeutil.MonthRange(date)

	if result.Weekly, err = periodStats(ctx, h.ledgerStore, q.UserID, &week); err != nil {
		return nil, err
	}
	if result.Monthly, err = periodStats(ctx, h.ledgerStore, q.UserID, &month); err != nil {
		return nil, err
	}

	attendance, err := h.ledgerStore.ListDates(ctx, ledger.KindAttendance, q.UserID)
	if err != nil {
		return nil, err
	}
	result.Streak = ledger.ComputeStreak(date, attendance)

	return result, nil
}
