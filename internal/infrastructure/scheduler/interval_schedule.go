package scheduler

import (
	"fmt"
	"time"
)

// minInterval matches the tick granularity of the scheduler loop.
// Intervals below it would fire on every tick anyway.
const minInterval = time.Second

// IntervalSchedule fires at a fixed period after each run.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an IntervalSchedule, clamping the period
// to the scheduler's tick granularity.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < minInterval {
		interval = minInterval
	}
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}
