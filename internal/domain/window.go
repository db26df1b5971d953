package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --- Error taxonomy for the scheduling core ---
var (
	// ErrInvalidConfiguration indicates a malformed check-in window config
	// (unknown day name, bad time format). Callers must fail fast rather
	// than silently fall back to a default window.
	ErrInvalidConfiguration = errors.New("invalid check-in window configuration")

	// ErrInvalidArgument indicates an out-of-range argument to the
	// recurrence calculations (e.g. week index below 1).
	ErrInvalidArgument = errors.New("invalid argument")
)

// CheckInWindowConfig describes the weekly range during which a check-in may
// be submitted on time. Day names are weekday words like "friday" or
// "Monday" (case-insensitive), times are 24h "HH:MM".
type CheckInWindowConfig struct {
	Enabled   bool   `bson:"enabled" json:"enabled"`
	StartDay  string `bson:"startDay" json:"startDay"`
	StartTime string `bson:"startTime" json:"startTime"`
	EndDay    string `bson:"endDay" json:"endDay"`
	EndTime   string `bson:"endTime" json:"endTime"`
}

// DefaultCheckInWindow is the single canonical window applied when an
// assignment carries no explicit config: opens Friday 09:00, closes the
// following Tuesday 12:00. Every call site must use this constant instead of
// recomputing its own default.
var DefaultCheckInWindow = CheckInWindowConfig{
	Enabled:   true,
	StartDay:  "friday",
	StartTime: "09:00",
	EndDay:    "tuesday",
	EndTime:   "12:00",
}

// Window is the resolved open/close range for one assignment's week, plus
// where "now" falls relative to it. IsOverdue is purely temporal; callers
// combine it with the assignment's completion state.
type Window struct {
	OpensAt   time.Time `json:"opensAt"`
	ClosesAt  time.Time `json:"closesAt"`
	IsOpen    bool      `json:"isOpen"`
	IsOverdue bool      `json:"isOverdue"`
}

// dayOffsets maps lowercase weekday names to their offset from Monday, the
// anchor day of every check-in week.
var dayOffsets = map[string]int{
	"monday":    0,
	"tuesday":   1,
	"wednesday": 2,
	"thursday":  3,
	"friday":    4,
	"saturday":  5,
	"sunday":    6,
}

func parseDayOffset(name string) (int, error) {
	offset, ok := dayOffsets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown day name %q", ErrInvalidConfiguration, name)
	}
	return offset, nil
}

// parseClock parses a 24h "HH:MM" string.
func parseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q is not in HH:MM format", ErrInvalidConfiguration, value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidConfiguration, value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidConfiguration, value)
	}
	return hour, minute, nil
}

// daysSinceMonday returns how many days t is past the Monday of its week.
func daysSinceMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekMonday returns Monday 00:00 of the week containing t, in t's location.
func WeekMonday(t time.Time) time.Time {
	m := t.AddDate(0, 0, -daysSinceMonday(t))
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, t.Location())
}

// ComputeWindow resolves the submission window for an assignment due at
// dueDate and reports where now falls relative to it.
//
// The window is anchored to the Monday of dueDate's week and must contain
// the due moment: when the configured start would land after dueDate, the
// window opens in the preceding week instead. A check-in due Monday 09:00
// with a Friday-to-Tuesday window therefore opens the preceding Friday and
// closes the Tuesday after the due date, spanning the week boundary. A
// disabled window means the check-in is submittable any time up to the due
// date and goes overdue once the due date passes.
func ComputeWindow(now, dueDate time.Time, cfg CheckInWindowConfig) (Window, error) {
	weekMonday := WeekMonday(dueDate)

	if !cfg.Enabled {
		return Window{
			OpensAt:   weekMonday,
			ClosesAt:  dueDate,
			IsOpen:    now.Before(dueDate),
			IsOverdue: now.After(dueDate),
		}, nil
	}

	startOffset, err := parseDayOffset(cfg.StartDay)
	if err != nil {
		return Window{}, err
	}
	endOffset, err := parseDayOffset(cfg.EndDay)
	if err != nil {
		return Window{}, err
	}
	startHour, startMinute, err := parseClock(cfg.StartTime)
	if err != nil {
		return Window{}, err
	}
	endHour, endMinute, err := parseClock(cfg.EndTime)
	if err != nil {
		return Window{}, err
	}

	loc := weekMonday.Location()
	opensAt := time.Date(weekMonday.Year(), weekMonday.Month(), weekMonday.Day()+startOffset,
		startHour, startMinute, 0, 0, loc)
	if opensAt.After(dueDate) {
		// A start landing after the due moment belongs to the preceding
		// week: a Monday-due check-in with a Friday start opens the
		// Friday before.
		opensAt = opensAt.AddDate(0, 0, -7)
	}

	closesAt := time.Date(weekMonday.Year(), weekMonday.Month(), weekMonday.Day()+endOffset,
		endHour, endMinute, 0, 0, loc)
	for closesAt.Before(opensAt) {
		// An end weekday at or before the (possibly shifted) start wraps
		// into the following week.
		closesAt = closesAt.AddDate(0, 0, 7)
	}

	return Window{
		OpensAt:   opensAt,
		ClosesAt:  closesAt,
		IsOpen:    !now.Before(opensAt) && !now.After(closesAt),
		IsOverdue: now.After(closesAt),
	}, nil
}
