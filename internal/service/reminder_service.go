package service

import (
	"coachkit/checkin-app/internal/domain"
	"coachkit/checkin-app/internal/mailer"
	"coachkit/checkin-app/internal/repository"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Reminder timing constants. The window-closed notice trails the close by
// roughly two hours; the overdue email repeats daily with a small slack so a
// cron tick that fires slightly early still sends.
const (
	reminder24hMin = 24 * time.Hour
	reminder24hMax = 48 * time.Hour

	windowClosedDelayMin = 110 * time.Minute
	windowClosedDelayMax = 130 * time.Minute

	overdueRepeatInterval = 23*time.Hour + 30*time.Minute
)

// ScanReport summarizes one dispatcher invocation.
type ScanReport struct {
	RunID   string   `json:"runId"`
	Scanned int      `json:"scanned"`
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// --- Service Interface ---
type ReminderService interface {
	// RunHourlyScan dispatches the window-open, 24h-due, and window-closed
	// reminders across all incomplete assignments.
	RunHourlyScan(ctx context.Context, now time.Time) (*ScanReport, error)
	// RunOverdueScan dispatches the daily overdue reminder. It only acts
	// during the configured hour (07:00 by default) and is the one
	// reminder that repeats.
	RunOverdueScan(ctx context.Context, now time.Time) (*ScanReport, error)
}

// --- Service Implementation ---

// reminderService implements the ReminderService interface. Sends are made
// effectively exactly-once by acquiring the assignment's marker with a
// conditional write before calling the mailer; overlapping scheduler ticks
// racing on the same assignment cannot both win the acquisition. A failed
// send rolls the marker back so the next tick retries.
type reminderService struct {
	assignmentRepo    repository.AssignmentRepository
	userRepo          repository.UserRepository
	formRepo          repository.FormRepository
	sender            mailer.Sender
	loc               *time.Location
	overrideRecipient string
	overdueHour       int
	logger            *zap.Logger

	// Guards against overlapping scans within this process; cross-process
	// overlap is handled by the marker acquisition itself.
	runMu   sync.Mutex
	running bool
}

// NewReminderService creates a new instance of reminderService.
func NewReminderService(
	assignmentRepo repository.AssignmentRepository,
	userRepo repository.UserRepository,
	formRepo repository.FormRepository,
	sender mailer.Sender,
	loc *time.Location,
	overrideRecipient string,
	overdueHour int,
	logger *zap.Logger,
) ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if overdueHour < 0 || overdueHour > 23 {
		overdueHour = 7
	}
	return &reminderService{
		assignmentRepo:    assignmentRepo,
		userRepo:          userRepo,
		formRepo:          formRepo,
		sender:            sender,
		loc:               loc,
		overrideRecipient: overrideRecipient,
		overdueHour:       overdueHour,
		logger:            logger,
	}
}

// tryBegin marks a scan as running, returning false when one already is.
func (s *reminderService) tryBegin() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *reminderService) end() {
	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()
}

// RunHourlyScan processes the three one-shot reminder kinds for every
// incomplete assignment. Per-assignment failures are recorded and the scan
// continues.
func (s *reminderService) RunHourlyScan(ctx context.Context, now time.Time) (*ScanReport, error) {
	if !s.tryBegin() {
		s.logger.Info("reminder scan already running, skipping")
		return &ScanReport{}, nil
	}
	defer s.end()

	report := &ScanReport{RunID: uuid.NewString()}
	now = now.In(s.loc)

	assignments, err := s.assignmentRepo.ListIncomplete(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list assignments: %w", err)
	}

	clients := make(map[primitive.ObjectID]*domain.User)
	forms := make(map[primitive.ObjectID]*domain.CheckInForm)
	for i := range assignments {
		a := &assignments[i]
		report.Scanned++

		sent, err := s.processHourly(ctx, now, a, clients, forms)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("assignment %s: %v", a.ID.Hex(), err))
			continue
		}
		if sent {
			report.Sent++
		} else {
			report.Skipped++
		}
	}

	s.logger.Info("hourly reminder scan completed",
		zap.String("run_id", report.RunID),
		zap.Int("scanned", report.Scanned),
		zap.Int("sent", report.Sent),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// processHourly evaluates one assignment against the three hourly reminder
// kinds and sends at most one email per invocation.
func (s *reminderService) processHourly(ctx context.Context, now time.Time, a *domain.Assignment, clients map[primitive.ObjectID]*domain.User, forms map[primitive.ObjectID]*domain.CheckInForm) (bool, error) {
	if a.DueDate == nil {
		return false, nil
	}
	dueDate := a.DueDate.In(s.loc)

	window, err := domain.ComputeWindow(now, dueDate, a.CheckInWindow)
	if err != nil {
		return false, err
	}

	client, err := s.clientFor(ctx, a.ClientID, clients)
	if err != nil {
		return false, err
	}
	if !client.CanReceiveReminders(s.overrideRecipient) {
		return false, nil
	}

	form, err := s.formFor(ctx, a.FormID, forms)
	if err != nil {
		return false, err
	}

	// The open window and the 24h-due band overlap, so each kind is
	// evaluated independently rather than first-match-wins.
	sentAny := false

	// 1. Window-open notice: at most once per local day, while open.
	if window.IsOpen {
		sent, err := s.sendWindowOpen(ctx, now, a, client, form)
		if err != nil {
			return sentAny, err
		}
		sentAny = sentAny || sent
	}

	// 2. 24h-due reminder: once, in the [24h, 48h) band before the due date.
	untilDue := dueDate.Sub(now)
	if untilDue >= reminder24hMin && untilDue < reminder24hMax && a.Reminder24hSent == nil {
		sent, err := s.sendOnce(ctx, now, a, client, domain.MarkerReminder24h,
			fmt.Sprintf("%s: due tomorrow", form.Title),
			fmt.Sprintf("<p>Hi %s, your %s check-in is due %s.</p>", client.Name, form.Title, dueDate.Format("Monday 15:04")))
		if err != nil {
			return sentAny, err
		}
		sentAny = sentAny || sent
	}

	// 3. Window-closed notice: once, ~2h after the close.
	sinceClose := now.Sub(window.ClosesAt)
	if window.IsOverdue && sinceClose >= windowClosedDelayMin && sinceClose <= windowClosedDelayMax && a.WindowClosedEmailSent == nil {
		sent, err := s.sendOnce(ctx, now, a, client, domain.MarkerWindowClosed,
			fmt.Sprintf("%s: the check-in window has closed", form.Title),
			fmt.Sprintf("<p>Hi %s, this week's %s window closed at %s. You can still submit it late.</p>",
				client.Name, form.Title, window.ClosesAt.Format("Monday 15:04")))
		if err != nil {
			return sentAny, err
		}
		sentAny = sentAny || sent
	}

	return sentAny, nil
}

// RunOverdueScan dispatches the repeating daily overdue reminder. Outside the
// configured hour it is a no-op regardless of how often the scheduler fires.
func (s *reminderService) RunOverdueScan(ctx context.Context, now time.Time) (*ScanReport, error) {
	report := &ScanReport{RunID: uuid.NewString()}
	now = now.In(s.loc)

	if now.Hour() != s.overdueHour {
		s.logger.Debug("overdue scan outside send hour, skipping",
			zap.Int("hour", now.Hour()),
			zap.Int("send_hour", s.overdueHour),
		)
		return report, nil
	}

	assignments, err := s.assignmentRepo.ListIncomplete(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list assignments: %w", err)
	}

	clients := make(map[primitive.ObjectID]*domain.User)
	forms := make(map[primitive.ObjectID]*domain.CheckInForm)
	for i := range assignments {
		a := &assignments[i]
		report.Scanned++

		sent, err := s.processOverdue(ctx, now, a, clients, forms)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("assignment %s: %v", a.ID.Hex(), err))
			continue
		}
		if sent {
			report.Sent++
		} else {
			report.Skipped++
		}
	}

	s.logger.Info("overdue reminder scan completed",
		zap.String("run_id", report.RunID),
		zap.Int("scanned", report.Scanned),
		zap.Int("sent", report.Sent),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (s *reminderService) processOverdue(ctx context.Context, now time.Time, a *domain.Assignment, clients map[primitive.ObjectID]*domain.User, forms map[primitive.ObjectID]*domain.CheckInForm) (bool, error) {
	if a.DueDate == nil {
		return false, nil
	}

	window, err := domain.ComputeWindow(now, a.DueDate.In(s.loc), a.CheckInWindow)
	if err != nil {
		return false, err
	}
	if !window.IsOverdue {
		return false, nil
	}

	client, err := s.clientFor(ctx, a.ClientID, clients)
	if err != nil {
		return false, err
	}
	if !client.CanReceiveReminders(s.overrideRecipient) {
		return false, nil
	}

	form, err := s.formFor(ctx, a.FormID, forms)
	if err != nil {
		return false, err
	}

	// Acquire: advances the marker only when no overdue email went out in
	// the last ~23.5h, so one email per day even under overlapping runs.
	prev, acquired, err := s.assignmentRepo.AcquireOverdueMarker(ctx, a.ID, now, now.Add(-overdueRepeatInterval))
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	if err := s.deliver(ctx, a, client,
		fmt.Sprintf("%s: your check-in is overdue", form.Title),
		fmt.Sprintf("<p>Hi %s, your %s check-in is overdue. Please complete it when you can.</p>", client.Name, form.Title),
		"overdue"); err != nil {
		if rbErr := s.assignmentRepo.RestoreOverdueMarker(ctx, a.ID, prev); rbErr != nil {
			s.logger.Error("failed to roll back overdue marker",
				zap.String("assignment_id", a.ID.Hex()),
				zap.Error(rbErr),
			)
		}
		return false, err
	}
	return true, nil
}

// sendWindowOpen dispatches the once-per-day window-open notice.
func (s *reminderService) sendWindowOpen(ctx context.Context, now time.Time, a *domain.Assignment, client *domain.User, form *domain.CheckInForm) (bool, error) {
	day := now.Format("2006-01-02")
	prev, acquired, err := s.assignmentRepo.AcquireDailyMarker(ctx, a.ID, domain.MarkerWindowOpen, day)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	if err := s.deliver(ctx, a, client,
		fmt.Sprintf("%s: your check-in window is open", form.Title),
		fmt.Sprintf("<p>Hi %s, your %s check-in is ready to complete.</p>", client.Name, form.Title),
		"window-open"); err != nil {
		if rbErr := s.assignmentRepo.RestoreDailyMarker(ctx, a.ID, domain.MarkerWindowOpen, prev); rbErr != nil {
			s.logger.Error("failed to roll back window-open marker",
				zap.String("assignment_id", a.ID.Hex()),
				zap.Error(rbErr),
			)
		}
		return false, err
	}
	return true, nil
}

// sendOnce dispatches a set-once reminder guarded by the named marker field.
func (s *reminderService) sendOnce(ctx context.Context, now time.Time, a *domain.Assignment, client *domain.User, marker, subject, html string) (bool, error) {
	acquired, err := s.assignmentRepo.AcquireSendMarker(ctx, a.ID, marker, now)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	if err := s.deliver(ctx, a, client, subject, html, marker); err != nil {
		if rbErr := s.assignmentRepo.ClearSendMarker(ctx, a.ID, marker); rbErr != nil {
			s.logger.Error("failed to roll back send marker",
				zap.String("assignment_id", a.ID.Hex()),
				zap.String("marker", marker),
				zap.Error(rbErr),
			)
		}
		return false, err
	}
	return true, nil
}

// deliver sends one reminder email, honoring the override recipient.
func (s *reminderService) deliver(ctx context.Context, a *domain.Assignment, client *domain.User, subject, html, kind string) error {
	to := client.Email
	if s.overrideRecipient != "" {
		to = s.overrideRecipient
	}

	result, err := s.sender.Send(ctx, mailer.Message{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
		Metadata: map[string]string{
			"Assignment": a.ID.Hex(),
			"Kind":       kind,
			"Week":       fmt.Sprintf("%d", a.RecurringWeek),
		},
	})
	if err != nil {
		return fmt.Errorf("send %s reminder: %w", kind, err)
	}

	s.logger.Info("reminder sent",
		zap.String("assignment_id", a.ID.Hex()),
		zap.String("kind", kind),
		zap.String("message_id", result.MessageID),
	)
	return nil
}

// clientFor loads and memoizes a client document for the duration of a scan.
func (s *reminderService) clientFor(ctx context.Context, id primitive.ObjectID, cache map[primitive.ObjectID]*domain.User) (*domain.User, error) {
	if client, ok := cache[id]; ok {
		return client, nil
	}
	client, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load client %s: %w", id.Hex(), err)
	}
	cache[id] = client
	return client, nil
}

// formFor loads and memoizes a form document for the duration of a scan.
func (s *reminderService) formFor(ctx context.Context, id primitive.ObjectID, cache map[primitive.ObjectID]*domain.CheckInForm) (*domain.CheckInForm, error) {
	if form, ok := cache[id]; ok {
		return form, nil
	}
	form, err := s.formRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load form %s: %w", id.Hex(), err)
	}
	cache[id] = form
	return form, nil
}
