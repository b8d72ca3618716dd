// Package timeutil provides the calendar policy for Jipsa-bot.
// Every user-facing day boundary (check-in, wake-up proof, study days,
// weekly/monthly stats) is evaluated in Korea Standard Time regardless of
// the host clock's zone. No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// SeoulTZ is the Korea Standard Time zone (UTC+9, no DST).
// South Korea has not observed DST since 1988, so this is constant year-round.
var SeoulTZ = time.FixedZone("Asia/Seoul", 9*60*60)

// FormatDate is the canonical civil-date layout (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// Now returns the current time in Seoul.
func Now() time.Time {
	return time.Now().In(SeoulTZ)
}

// ToSeoul converts a time to Seoul time.
func ToSeoul(t time.Time) time.Time {
	return t.In(SeoulTZ)
}

// Date is a civil calendar day in Seoul time, independent of clock time.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date the instant t falls on in Seoul.
func DateOf(t time.Time) Date {
	s := t.In(SeoulTZ)
	return Date{Year: s.Year(), Month: s.Month(), Day: s.Day()}
}

// Today returns today's civil date in Seoul.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(FormatDate, s, SeoulTZ)
	if err != nil {
		return Date{}, fmt.Errorf("timeutil: parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate parses a YYYY-MM-DD string and panics on error. Test helper.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight of the date in Seoul.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, SeoulTZ)
}

// String returns the date formatted as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(FormatDate)
}

// AddDays returns the date n days after d (n may be negative).
// Month and year boundaries are normalized by the time package.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// DaysUntil returns the number of civil days from d to other.
// Positive when other is later than d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Range is an inclusive span of civil dates.
type Range struct {
	From Date
	To   Date
}

// Contains reports whether d falls within the range.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// WeekRange returns the Monday-to-Sunday span containing d.
func WeekRange(d Date) Range {
	weekday := int(d.Time().Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	monday := d.AddDays(-(weekday - 1))
	return Range{From: monday, To: monday.AddDays(6)}
}

// MonthRange returns the first-to-last calendar day of d's month.
// The last day is computed by advancing to the next month and stepping
// back one day, which handles 28/29/30/31-day months.
func MonthRange(d Date) Range {
	first := Date{Year: d.Year, Month: d.Month, Day: 1}
	nextMonth := DateOf(first.Time().AddDate(0, 1, 0))
	return Range{From: first, To: nextMonth.AddDays(-1)}
}
