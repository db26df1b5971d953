package service

import (
	"coachkit/checkin-app/internal/domain"
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 2026-03-09 is a Monday.
var (
	testDue = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	testWindow = domain.CheckInWindowConfig{
		Enabled:   true,
		StartDay:  "friday",
		StartTime: "10:00",
		EndDay:    "monday",
		EndTime:   "22:00",
	}
)

type reminderFixture struct {
	assignments *fakeAssignmentRepo
	users       *fakeUserRepo
	forms       *fakeFormRepo
	mail        *fakeMailer
	client      *domain.User
	form        *domain.CheckInForm
}

func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()
	f := &reminderFixture{
		assignments: newFakeAssignmentRepo(),
		users:       newFakeUserRepo(),
		forms:       newFakeFormRepo(),
		mail:        &fakeMailer{},
	}
	f.client = f.users.add(&domain.User{
		Name:                      "Taylor",
		Email:                     "taylor@example.com",
		Role:                      domain.RoleClient,
		Status:                    domain.ClientActive,
		OnboardingComplete:        true,
		EmailNotificationsEnabled: true,
	})
	f.form = f.forms.add(&domain.CheckInForm{
		CoachID:     primitive.NewObjectID(),
		Title:       "Weekly Check-In",
		IsRecurring: true,
	})
	return f
}

func (f *reminderFixture) service(override string) ReminderService {
	return NewReminderService(f.assignments, f.users, f.forms, f.mail, time.UTC, override, 7, nil)
}

func (f *reminderFixture) addAssignment(t *testing.T, due time.Time, cfg domain.CheckInWindowConfig) primitive.ObjectID {
	t.Helper()
	a := &domain.Assignment{
		ClientID:      f.client.ID,
		CoachID:       f.form.CoachID,
		FormID:        f.form.ID,
		DueDate:       &due,
		CheckInWindow: cfg,
		Status:        domain.StatusPending,
		IsRecurring:   true,
		RecurringWeek: 1,
		TotalWeeks:    12,
	}
	id, err := f.assignments.Create(context.Background(), a)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestRunHourlyScan_WindowOpenOncePerDay(t *testing.T) {
	f := newReminderFixture(t)
	f.addAssignment(t, testDue, testWindow)
	svc := f.service("")

	// Friday 10:05, five minutes into the window. Three back-to-back runs
	// must produce exactly one email.
	now := time.Date(2026, 3, 6, 10, 5, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		report, err := svc.RunHourlyScan(context.Background(), now)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if len(report.Errors) != 0 {
			t.Fatalf("run %d errors: %v", i, report.Errors)
		}
	}
	if got := f.mail.countKind("window-open"); got != 1 {
		t.Fatalf("window-open sends after three same-day runs = %d, want 1", got)
	}

	// Saturday, still open. One more send.
	if _, err := svc.RunHourlyScan(context.Background(), now.AddDate(0, 0, 1)); err != nil {
		t.Fatal(err)
	}
	if got := f.mail.countKind("window-open"); got != 2 {
		t.Fatalf("window-open sends after next-day run = %d, want 2", got)
	}
}

func TestRunHourlyScan_SubjectCarriesFormTitle(t *testing.T) {
	f := newReminderFixture(t)
	f.addAssignment(t, testDue, testWindow)

	if _, err := f.service("").RunHourlyScan(context.Background(), time.Date(2026, 3, 6, 10, 5, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if len(f.mail.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(f.mail.sent))
	}
	if !strings.Contains(f.mail.sent[0].Subject, "Weekly Check-In") {
		t.Fatalf("subject %q does not name the form", f.mail.sent[0].Subject)
	}
}

func TestRunHourlyScan_SkipsBeforeWindowOpens(t *testing.T) {
	f := newReminderFixture(t)
	f.addAssignment(t, testDue, testWindow)
	svc := f.service("")

	// Friday 09:55, five minutes early.
	report, err := svc.RunHourlyScan(context.Background(), time.Date(2026, 3, 6, 9, 55, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 0 || report.Skipped != 1 {
		t.Fatalf("report = sent %d skipped %d, want 0/1", report.Sent, report.Skipped)
	}
	if len(f.mail.sent) != 0 {
		t.Fatalf("unexpected sends: %v", f.mail.sent)
	}
}

func TestRunHourlyScan_Reminder24hBand(t *testing.T) {
	f := newReminderFixture(t)
	f.addAssignment(t, testDue, testWindow)
	svc := f.service("")

	// 49h before the due date: outside the band, nothing yet.
	if _, err := svc.RunHourlyScan(context.Background(), testDue.Add(-49*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if got := f.mail.countKind(domain.MarkerReminder24h); got != 0 {
		t.Fatalf("sends outside band = %d, want 0", got)
	}

	// 25h before: inside [24h, 48h). Repeated runs send once.
	now := testDue.Add(-25 * time.Hour)
	for i := 0; i < 2; i++ {
		if _, err := svc.RunHourlyScan(context.Background(), now); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.mail.countKind(domain.MarkerReminder24h); got != 1 {
		t.Fatalf("sends inside band = %d, want 1", got)
	}
}

func TestRunHourlyScan_WindowClosedNotice(t *testing.T) {
	f := newReminderFixture(t)
	f.addAssignment(t, testDue, testWindow)
	svc := f.service("")

	closesAt := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)

	// One hour after close: too early for the notice.
	if _, err := svc.RunHourlyScan(context.Background(), closesAt.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if got := f.mail.countKind(domain.MarkerWindowClosed); got != 0 {
		t.Fatalf("sends 1h after close = %d, want 0", got)
	}

	// Two hours after close: inside the dispatch band, once only.
	now := closesAt.Add(2 * time.Hour)
	for i := 0; i < 2; i++ {
		if _, err := svc.RunHourlyScan(context.Background(), now); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.mail.countKind(domain.MarkerWindowClosed); got != 1 {
		t.Fatalf("sends 2h after close = %d, want 1", got)
	}
}

func TestRunHourlyScan_EligibilityGates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(u *domain.User)
	}{
		{"paused client", func(u *domain.User) { u.Status = domain.ClientPaused }},
		{"onboarding incomplete", func(u *domain.User) { u.OnboardingComplete = false }},
		{"notifications disabled", func(u *domain.User) { u.EmailNotificationsEnabled = false }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newReminderFixture(t)
			tc.mutate(f.client)
			f.addAssignment(t, testDue, testWindow)

			report, err := f.service("").RunHourlyScan(context.Background(), time.Date(2026, 3, 6, 10, 5, 0, 0, time.UTC))
			if err != nil {
				t.Fatal(err)
			}
			if report.Sent != 0 || len(f.mail.sent) != 0 {
				t.Fatalf("expected no sends, got report %+v, mail %v", report, f.mail.sent)
			}
		})
	}
}

func TestRunHourlyScan_OverrideRecipient(t *testing.T) {
	f := newReminderFixture(t)
	// Opted out of notifications, but the override recipient reroutes the
	// email instead of suppressing it.
	f.client.EmailNotificationsEnabled = false
	f.addAssignment(t, testDue, testWindow)

	svc := f.service("qa@example.com")
	if _, err := svc.RunHourlyScan(context.Background(), time.Date(2026, 3, 6, 10, 5, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if len(f.mail.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(f.mail.sent))
	}
	if f.mail.sent[0].To != "qa@example.com" {
		t.Fatalf("recipient = %q, want override", f.mail.sent[0].To)
	}
}

func TestRunHourlyScan_SendFailureRollsBackMarker(t *testing.T) {
	f := newReminderFixture(t)
	id := f.addAssignment(t, testDue, testWindow)
	svc := f.service("")

	now := time.Date(2026, 3, 6, 10, 5, 0, 0, time.UTC)

	f.mail.fail = true
	report, err := svc.RunHourlyScan(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry", report.Errors)
	}
	a, err := f.assignments.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if a.WindowOpenEmailSentDate != "" {
		t.Fatalf("marker not rolled back: %q", a.WindowOpenEmailSentDate)
	}

	// Mailer recovers; the same day retries cleanly.
	f.mail.fail = false
	if _, err := svc.RunHourlyScan(context.Background(), now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if got := f.mail.countKind("window-open"); got != 1 {
		t.Fatalf("sends after recovery = %d, want 1", got)
	}
}

func TestRunHourlyScan_SkipsAssignmentWithoutDueDate(t *testing.T) {
	f := newReminderFixture(t)
	a := &domain.Assignment{
		ClientID:      f.client.ID,
		FormID:        primitive.NewObjectID(),
		CheckInWindow: testWindow,
		Status:        domain.StatusPending,
	}
	if _, err := f.assignments.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}

	report, err := f.service("").RunHourlyScan(context.Background(), time.Date(2026, 3, 6, 10, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 1 || report.Skipped != 1 || len(report.Errors) != 0 {
		t.Fatalf("report = %+v, want one clean skip", report)
	}
}

func TestRunOverdueScan_DailyRepeat(t *testing.T) {
	f := newReminderFixture(t)
	// Default window closes Tuesday 2026-03-10 12:00.
	id := f.addAssignment(t, testDue, domain.DefaultCheckInWindow)
	svc := f.service("")
	ctx := context.Background()

	// Thursday 07:15, two days overdue.
	day1 := time.Date(2026, 3, 12, 7, 15, 0, 0, time.UTC)
	report, err := svc.RunOverdueScan(ctx, day1)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 {
		t.Fatalf("day 1 sent = %d, want 1", report.Sent)
	}

	// A second tick the same hour stays quiet.
	if report, err = svc.RunOverdueScan(ctx, day1.Add(30*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if report.Sent != 0 {
		t.Fatalf("same-day resend = %d, want 0", report.Sent)
	}

	// The next morning sends again.
	if report, err = svc.RunOverdueScan(ctx, day1.AddDate(0, 0, 1)); err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 {
		t.Fatalf("day 2 sent = %d, want 1", report.Sent)
	}
	if got := f.mail.countKind("overdue"); got != 2 {
		t.Fatalf("total overdue sends = %d, want 2", got)
	}

	// Completion stops the emails.
	if err := f.assignments.LinkResponse(ctx, id, primitive.NewObjectID(), day1.AddDate(0, 0, 1)); err != nil {
		t.Fatal(err)
	}
	if report, err = svc.RunOverdueScan(ctx, day1.AddDate(0, 0, 2)); err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 0 || report.Sent != 0 {
		t.Fatalf("post-completion report = %+v, want empty scan", report)
	}
}

func TestRunOverdueScan_OnlyDuringSendHour(t *testing.T) {
	f := newReminderFixture(t)
	f.addAssignment(t, testDue, domain.DefaultCheckInWindow)
	svc := f.service("")

	report, err := svc.RunOverdueScan(context.Background(), time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 0 || len(f.mail.sent) != 0 {
		t.Fatalf("scan outside send hour did work: %+v", report)
	}
}

func TestRunOverdueScan_NotBeforeClose(t *testing.T) {
	f := newReminderFixture(t)
	f.addAssignment(t, testDue, domain.DefaultCheckInWindow)
	svc := f.service("")

	// Monday 07:15, the window has not closed yet.
	report, err := svc.RunOverdueScan(context.Background(), time.Date(2026, 3, 9, 7, 15, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 0 {
		t.Fatalf("sent = %d before window close, want 0", report.Sent)
	}
}
