package ledger

import (
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ComputeStreak returns the length of the consecutive-day run ending at
// today or yesterday. A streak anchored on yesterday is still alive: the
// member has until the end of today to extend it. Missing both days means
// the streak is 0, whatever the history holds.
//
// dates may arrive in any order and may contain duplicates.
func ComputeStreak(today timeutil.Date, dates []timeutil.Date) int {
	if len(dates) == 0 {
		return 0
	}

	seen := make(map[timeutil.Date]struct{}, len(dates))
	for _, d := range dates {
		seen[d] = struct{}{}
	}

	anchor := today
	if _, ok := seen[anchor]; !ok {
		anchor = today.AddDays(-1)
		if _, ok := seen[anchor]; !ok {
			return 0
		}
	}

	streak := 0
	for d := anchor; ; d = d.AddDays(-1) {
		if _, ok := seen[d]; !ok {
			break
		}
		streak++
	}
	return streak
}
