// Package ledger defines the durable activity records - attendance check-ins,
// wake-up verifications, and accumulated study minutes - together with the
// reward rules and the streak computation built on them.
package ledger

import (
	"context"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// Kind identifies one of the three activity ledgers.
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindWakeup     Kind = "wakeup"
	KindStudy      Kind = "study"
)

// Reward rules. Amounts are per-action XP grants.
const (
	// CheckInXP is granted on the first check-in of a day.
	CheckInXP = 50

	// WakeupEarlyXP is granted for a wake-up proof before the cutoff hour.
	WakeupEarlyXP = 200

	// WakeupLateXP is granted for a wake-up proof at or after the cutoff.
	WakeupLateXP = 100

	// WakeupCutoffHour is the local hour (KST) at which the early bonus ends.
	WakeupCutoffHour = 9

	// StudyXPPerMinute converts credited study minutes into XP, before the
	// session multiplier.
	StudyXPPerMinute = 1

	// MinStudyMinutes is the shortest session that earns credit. A day only
	// counts toward the study streak when its accumulated minutes reach this.
	MinStudyMinutes = 10
)

// WakeupXPFor returns the wake-up reward for a proof accepted at t,
// judged by the local wall clock in Seoul.
func WakeupXPFor(t time.Time) int {
	if timeutil.ToSeoul(t).Hour() < WakeupCutoffHour {
		return WakeupEarlyXP
	}
	return WakeupLateXP
}

// StudyXPFor converts a finalized session into XP.
func StudyXPFor(minutes, multiplier int) int {
	return minutes * StudyXPPerMinute * multiplier
}

// Store persists the three activity ledgers. Implementations must commit
// before returning from every mutating call.
type Store interface {
	// RecordAttendance inserts the (user, date) attendance row. It returns
	// alreadyRecorded=true without error when the row existed; a repeat
	// check-in is an observed outcome, not a failure.
	RecordAttendance(ctx context.Context, userID string, date timeutil.Date) (alreadyRecorded bool, err error)

	// RecordWakeup inserts the (user, date) wake-up row with the same
	// duplicate semantics as RecordAttendance.
	RecordWakeup(ctx context.Context, userID string, date timeutil.Date) (alreadyRecorded bool, err error)

	// AccumulateStudyMinutes adds minutes (>= 1) to the (user, date) study
	// row, creating it on first write, and returns the day's new total.
	AccumulateStudyMinutes(ctx context.Context, userID string, date timeutil.Date, minutes int) (dayTotal int, err error)

	// ListDates returns the dates on which the user has a record of the
	// given kind, newest first. Study dates are filtered to qualifying days
	// (accumulated minutes >= MinStudyMinutes).
	ListDates(ctx context.Context, kind Kind, userID string) ([]timeutil.Date, error)

	// CountInRange counts the user's recorded days of the given kind inside
	// the range, with the same study-day qualification filter.
	CountInRange(ctx context.Context, kind Kind, userID string, r timeutil.Range) (int, error)

	// CountAll counts all recorded days of the given kind for the user.
	CountAll(ctx context.Context, kind Kind, userID string) (int, error)

	// SumMinutesInRange totals the user's study minutes inside the range.
	SumMinutesInRange(ctx context.Context, userID string, r timeutil.Range) (int, error)

	// SumMinutesAll totals the user's study minutes over all time.
	SumMinutesAll(ctx context.Context, userID string) (int, error)

	// AttendanceCounts returns every attendee's lifetime attendance count.
	AttendanceCounts(ctx context.Context) (map[string]int, error)

	// AttendanceDatesByUser returns every attendee's attendance dates,
	// newest first per user. Feeds the streak leaderboard recompute.
	AttendanceDatesByUser(ctx context.Context) (map[string][]timeutil.Date, error)
}

// FinalizeStudyResult reports the outcome of a study-session finalization.
type FinalizeStudyResult struct {
	Minutes    int
	Multiplier int
	XPEarned   int
	DayTotal   int
	Member     *member.Member
	LeveledUp  bool
}

// Finalizer executes the study finalization as one atomic unit: the study
// minutes write, the XP grant, and the ephemeral session delete either all
// happen or none do. Implemented over a single database transaction.
type Finalizer interface {
	FinalizeStudy(ctx context.Context, userID, displayName string, date timeutil.Date, minutes, multiplier int) (*FinalizeStudyResult, error)
}
