// Package query contains the read side: period stats, activity history,
// profile cards, and the leaderboards. Queries never modify state.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// A member's activity totals over the current week, the current month, and
// all time. Weeks run Monday to Sunday, months are calendar months, both on
// the Seoul wall clock.
// ══════════════════════════════════════════════════════════════════════════════

// PeriodStats are one member's totals over one span.
type PeriodStats struct {
	CheckIns     int `json:"check_ins"`
	Wakeups      int `json:"wakeups"`
	StudyDays    int `json:"study_days"` // days with 10+ credited minutes
	StudyMinutes int `json:"study_minutes"`
}

// GetStatsQuery identifies the member and the reference instant.
type GetStatsQuery struct {
	UserID string

	// At anchors the week and month; zero means now.
	At time.Time
}

// Validate validates the query and fills defaults.
func (q *GetStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_stats: user_id is required")
	}
	if q.At.IsZero() {
		q.At = timeutil.Now()
	}
	return nil
}

// GetStatsResult carries the three spans.
type GetStatsResult struct {
	Date     timeutil.Date `json:"date"`
	Weekly   PeriodStats   `json:"weekly"`
	Monthly  PeriodStats   `json:"monthly"`
	Lifetime PeriodStats   `json:"lifetime"`
}

// StatsHandler answers stats queries.
type StatsHandler struct {
	ledgerStore ledger.Store
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(ledgerStore ledger.Store) *StatsHandler {
	return &StatsHandler{ledgerStore: ledgerStore}
}

// Handle computes the weekly, monthly, and lifetime totals.
func (h *StatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*GetStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	date := timeutil.DateOf(q.At)
	week := timeutil.WeekRange(date)
	month := timeutil.MonthRange(date)

	weekly, err := periodStats(ctx, h.ledgerStore, q.UserID, &week)
	if err != nil {
		return nil, err
	}
	monthly, err := periodStats(ctx, h.ledgerStore, q.UserID, &month)
	if err != nil {
		return nil, err
	}
	lifetime, err := periodStats(ctx, h.ledgerStore, q.UserID, nil)
	if err != nil {
		return nil, err
	}

	return &GetStatsResult{
		Date:     date,
		Weekly:   weekly,
		Monthly:  monthly,
		Lifetime: lifetime,
	}, nil
}

// periodStats collects one span's totals. A nil range means all time.
func periodStats(ctx context.Context, store ledger.Store, userID string, r *timeutil.Range) (PeriodStats, error) {
	var stats PeriodStats
	var err error

	if r == nil {
		if stats.CheckIns, err = store.CountAll(ctx, ledger.KindAttendance, userID); err != nil {
			return stats, err
		}
		if stats.Wakeups, err = store.CountAll(ctx, ledger.KindWakeup, userID); err != nil {
			return stats, err
		}
		if stats.StudyDays, err = store.CountAll(ctx, ledger.KindStudy, userID); err != nil {
			return stats, err
		}
		stats.StudyMinutes, err = store.SumMinutesAll(ctx, userID)
		return stats, err
	}

	if stats.CheckIns, err = store.CountInRange(ctx, ledger.KindAttendance, userID, *r); err != nil {
		return stats, err
	}
	if stats.Wakeups, err = store.CountInRange(ctx, ledger.KindWakeup, userID, *r); err != nil {
		return stats, err
	}
	if stats.StudyDays, err = store.CountInRange(ctx, ledger.KindStudy, userID, *r); err != nil {
		return stats, err
	}
	stats.StudyMinutes, err = store.SumMinutesInRange(ctx, userID, *r)
	return stats, err
}
