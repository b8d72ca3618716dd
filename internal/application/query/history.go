package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HISTORY QUERY
// A member's recent check-in dates plus the three current streaks. The date
// list is capped so the rendered message stays one screen tall.
// ══════════════════════════════════════════════════════════════════════════════

// HistoryLimit caps the listed attendance dates.
const HistoryLimit = 20

// GetHistoryQuery identifies the member and the reference instant.
type GetHistoryQuery struct {
	UserID string

	// At anchors the streak computation; zero means now.
	At time.Time
}

// Validate validates the query and fills defaults.
func (q *GetHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_history: user_id is required")
	}
	if q.At.IsZero() {
		q.At = timeutil.Now()
	}
	return nil
}

// GetHistoryResult carries the recent dates and the streaks.
type GetHistoryResult struct {
	Date timeutil.Date `json:"date"`

	// RecentAttendance lists at most HistoryLimit dates, newest first.
	RecentAttendance []timeutil.Date `json:"recent_attendance"`

	// TotalDays is the lifetime check-in count, which can exceed the list.
	TotalDays int `json:"total_days"`

	AttendanceStreak int `json:"attendance_streak"`
	WakeupStreak     int `json:"wakeup_streak"`
	StudyStreak      int `json:"study_streak"`
}

// HistoryHandler answers history queries.
type HistoryHandler struct {
	ledgerStore ledger.Store
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(ledgerStore ledger.Store) *HistoryHandler {
	return &HistoryHandler{ledgerStore: ledgerStore}
}

// Handle lists the recent check-ins and computes the three streaks.
func (h *HistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) (*GetHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	today := timeutil.DateOf(q.At)
	result := &GetHistoryResult{Date: today}

	attendance, err := h.ledgerStore.ListDates(ctx, ledger.KindAttendance, q.UserID)
	if err != nil {
		return nil, err
	}
	sort.Slice(attendance, func(i, j int) bool { return attendance[i].After(attendance[j]) })

	result.TotalDays = len(attendance)
	result.AttendanceStreak = ledger.ComputeStreak(today, attendance)
	if len(attendance) > HistoryLimit {
		attendance = attendance[:HistoryLimit]
	}
	result.RecentAttendance = attendance

	wakeups, err := h.ledgerStore.ListDates(ctx, ledger.KindWakeup, q.UserID)
	if err != nil {
		return nil, err
	}
	result.WakeupStreak = ledger.ComputeStreak(today, wakeups)

	studyDays, err := h.ledgerStore.ListDates(ctx, ledger.KindStudy, q.UserID)
	if err != nil {
		return nil, err
	}
	result.StudyStreak = ledger.ComputeStreak(today, studyDays)

	return result, nil
}
