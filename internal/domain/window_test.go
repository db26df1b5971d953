package domain

import (
	"errors"
	"testing"
	"time"
)

// dueMonday is Monday 2026-03-09 09:00 UTC, the canonical due instant used
// across these tests.
var dueMonday = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

func TestComputeWindow_SpansWeekBoundary(t *testing.T) {
	cfg := CheckInWindowConfig{
		Enabled:   true,
		StartDay:  "friday",
		StartTime: "09:00",
		EndDay:    "tuesday",
		EndTime:   "12:00",
	}

	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC) // Saturday inside the window
	w, err := ComputeWindow(now, dueMonday, cfg)
	if err != nil {
		t.Fatalf("ComputeWindow: %v", err)
	}

	wantOpen := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)   // preceding Friday 09:00
	wantClose := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) // following Tuesday 12:00
	if !w.OpensAt.Equal(wantOpen) {
		t.Errorf("OpensAt = %v, want %v", w.OpensAt, wantOpen)
	}
	if !w.ClosesAt.Equal(wantClose) {
		t.Errorf("ClosesAt = %v, want %v", w.ClosesAt, wantClose)
	}
	if !w.IsOpen {
		t.Error("expected window open on Saturday")
	}
	if w.IsOverdue {
		t.Error("window should not be overdue while open")
	}
}

func TestComputeWindow_BeforeAndAfter(t *testing.T) {
	cfg := DefaultCheckInWindow

	before := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) // Thursday, window not yet open
	w, err := ComputeWindow(before, dueMonday, cfg)
	if err != nil {
		t.Fatalf("ComputeWindow: %v", err)
	}
	if w.IsOpen || w.IsOverdue {
		t.Errorf("before open: IsOpen=%v IsOverdue=%v, want false/false", w.IsOpen, w.IsOverdue)
	}

	after := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC) // Tuesday 13:00, past the close
	w, err = ComputeWindow(after, dueMonday, cfg)
	if err != nil {
		t.Fatalf("ComputeWindow: %v", err)
	}
	if w.IsOpen {
		t.Error("window should be closed after ClosesAt")
	}
	if !w.IsOverdue {
		t.Error("expected overdue after ClosesAt")
	}
}

func TestComputeWindow_Disabled(t *testing.T) {
	cfg := CheckInWindowConfig{Enabled: false}

	early := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	w, err := ComputeWindow(early, dueMonday, cfg)
	if err != nil {
		t.Fatalf("ComputeWindow: %v", err)
	}
	if !w.IsOpen {
		t.Error("disabled window should be open for any now before dueDate")
	}
	if w.IsOverdue {
		t.Error("disabled window should not be overdue before dueDate")
	}

	late := dueMonday.Add(time.Minute)
	w, err = ComputeWindow(late, dueMonday, cfg)
	if err != nil {
		t.Fatalf("ComputeWindow: %v", err)
	}
	if w.IsOpen {
		t.Error("disabled window should close at dueDate")
	}
	if !w.IsOverdue {
		t.Error("disabled window should be overdue after dueDate")
	}
}

func TestComputeWindow_OpensNeverAfterCloses(t *testing.T) {
	days := []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	now := dueMonday

	for _, start := range days {
		for _, end := range days {
			cfg := CheckInWindowConfig{
				Enabled:   true,
				StartDay:  start,
				StartTime: "10:00",
				EndDay:    end,
				EndTime:   "08:30",
			}
			w, err := ComputeWindow(now, dueMonday, cfg)
			if err != nil {
				t.Fatalf("ComputeWindow(%s→%s): %v", start, end, err)
			}
			if w.OpensAt.After(w.ClosesAt) {
				t.Errorf("%s→%s: OpensAt %v after ClosesAt %v", start, end, w.OpensAt, w.ClosesAt)
			}
		}
	}
}

func TestComputeWindow_DayNamesCaseInsensitive(t *testing.T) {
	cfg := CheckInWindowConfig{
		Enabled:   true,
		StartDay:  "Friday",
		StartTime: "09:00",
		EndDay:    "TUESDAY",
		EndTime:   "12:00",
	}
	now := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)
	w, err := ComputeWindow(now, dueMonday, cfg)
	if err != nil {
		t.Fatalf("ComputeWindow: %v", err)
	}
	if !w.IsOpen {
		t.Error("expected window open Friday 10:00 with mixed-case day names")
	}
}

func TestComputeWindow_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  CheckInWindowConfig
	}{
		{"unknown day", CheckInWindowConfig{Enabled: true, StartDay: "funday", StartTime: "09:00", EndDay: "monday", EndTime: "12:00"}},
		{"bad start time", CheckInWindowConfig{Enabled: true, StartDay: "friday", StartTime: "9am", EndDay: "monday", EndTime: "12:00"}},
		{"hour out of range", CheckInWindowConfig{Enabled: true, StartDay: "friday", StartTime: "25:00", EndDay: "monday", EndTime: "12:00"}},
		{"minute out of range", CheckInWindowConfig{Enabled: true, StartDay: "friday", StartTime: "09:00", EndDay: "monday", EndTime: "12:60"}},
	}

	for _, tc := range cases {
		_, err := ComputeWindow(dueMonday, dueMonday, tc.cfg)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("%s: got %v, want ErrInvalidConfiguration", tc.name, err)
		}
	}
}

func TestWeekMonday(t *testing.T) {
	sunday := time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC)
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := WeekMonday(sunday); !got.Equal(want) {
		t.Errorf("WeekMonday(sunday) = %v, want %v", got, want)
	}
	// A Monday maps to itself (at midnight).
	if got := WeekMonday(dueMonday); !got.Equal(want) {
		t.Errorf("WeekMonday(monday) = %v, want %v", got, want)
	}
}
