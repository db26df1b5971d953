package domain

import (
	"fmt"
	"math"
	"time"
)

// DueDateHour is the local hour of day every weekly due date is anchored to.
// Due dates are nominally "Monday 09:00 local".
const DueDateHour = 9

// AnchorMonday returns Monday 09:00 of the week containing t, in t's location.
// This is the canonical due-date instant for whichever week t falls in.
func AnchorMonday(t time.Time) time.Time {
	m := WeekMonday(t)
	return time.Date(m.Year(), m.Month(), m.Day(), DueDateHour, 0, 0, 0, m.Location())
}

// DueDateForWeek returns the due date of the given 1-based week in a weekly
// series anchored at baseMonday: baseMonday + 7×(week−1) days, at 09:00 local.
func DueDateForWeek(baseMonday time.Time, week int) (time.Time, error) {
	if week < 1 {
		return time.Time{}, fmt.Errorf("%w: recurring week must be >= 1, got %d", ErrInvalidArgument, week)
	}
	return AnchorMonday(baseMonday).AddDate(0, 0, 7*(week-1)), nil
}

// WeekForDueDate is the inverse of DueDateForWeek: it maps an arbitrary due
// date (or any instant in the target calendar week) back to its 1-based week
// index within the series anchored at baseMonday. The result is clamped to a
// minimum of 1, so dates before the series start resolve to week 1.
func WeekForDueDate(baseMonday, dueDate time.Time) int {
	base := WeekMonday(baseMonday)
	target := WeekMonday(dueDate)
	days := target.Sub(base).Hours() / 24
	week := int(math.Round(days/7)) + 1
	if week < 1 {
		week = 1
	}
	return week
}

// MissingWeeks returns the week indexes in [2, totalWeeks] absent from
// existing, in ascending order. Week 1 is never backfilled: it is the
// template the series was created from. Because the result excludes every
// week already present, running backfill repeatedly can never produce a
// duplicate.
func MissingWeeks(existing map[int]bool, totalWeeks int) []int {
	var missing []int
	for week := 2; week <= totalWeeks; week++ {
		if !existing[week] {
			missing = append(missing, week)
		}
	}
	return missing
}
