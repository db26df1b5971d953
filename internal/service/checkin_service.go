package service

import (
	"coachkit/checkin-app/internal/domain"
	"coachkit/checkin-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrNoCheckInAssigned      = errors.New("no check-in assigned for this client and form")
	ErrNoUsableDueDate        = errors.New("series template has no usable due date")
	ErrAssignmentNotFound     = errors.New("assignment not found")
	ErrAssignmentAccessDenied = errors.New("access denied to this assignment")
	ErrAlreadyCompleted       = errors.New("assignment already has a response")
)

// ResolvedCheckIn is the outcome of resolving a (client, form, week) triple
// to a concrete assignment, creating it on demand when needed.
type ResolvedCheckIn struct {
	AssignmentID  primitive.ObjectID `json:"assignmentId"`
	Title         string             `json:"title"`
	RecurringWeek int                `json:"recurringWeek"`
	DueDate       time.Time          `json:"dueDate"`
	Created       bool               `json:"created"` // True when this call synthesized the assignment
}

// BackfillReport summarizes one backfill pass over all recurring series.
// Skipped series (no usable template due date) and per-series errors are
// reported, not fatal to the batch.
type BackfillReport struct {
	SeriesProcessed    int      `json:"seriesProcessed"`
	AssignmentsCreated int      `json:"assignmentsCreated"`
	Skipped            []string `json:"skipped,omitempty"`
	Errors             []string `json:"errors,omitempty"`
}

// --- Service Interface ---
type CheckInService interface {
	// ResolveWeek maps a calendar week to the client's assignment for that
	// week, synthesizing it from the series template when it doesn't exist
	// yet.
	ResolveWeek(ctx context.Context, clientID, formID primitive.ObjectID, weekStart time.Time) (*ResolvedCheckIn, error)
	// SubmitResponse records a client's answers against an assignment and
	// marks it completed.
	SubmitResponse(ctx context.Context, clientID, assignmentID primitive.ObjectID, answers []domain.Answer) (*domain.Response, error)
	// BackfillSeries creates the missing weeks [2..totalWeeks] of one series.
	BackfillSeries(ctx context.Context, template *domain.Assignment) (int, error)
	// BackfillAll runs BackfillSeries over every recurring series.
	BackfillAll(ctx context.Context) (*BackfillReport, error)
	// WindowStatus reports the computed check-in window for an assignment,
	// the ops diagnostic behind the window-status endpoint.
	WindowStatus(ctx context.Context, assignmentID primitive.ObjectID, now time.Time) (*domain.Window, error)
}

// --- Service Implementation ---

// checkInService implements the CheckInService interface.
type checkInService struct {
	assignmentRepo repository.AssignmentRepository
	responseRepo   repository.ResponseRepository
	formRepo       repository.FormRepository
	loc            *time.Location
	logger         *zap.Logger
}

// NewCheckInService creates a new instance of checkInService. loc is the
// location check-in weeks are computed in.
func NewCheckInService(
	assignmentRepo repository.AssignmentRepository,
	responseRepo repository.ResponseRepository,
	formRepo repository.FormRepository,
	loc *time.Location,
	logger *zap.Logger,
) CheckInService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &checkInService{
		assignmentRepo: assignmentRepo,
		responseRepo:   responseRepo,
		formRepo:       formRepo,
		loc:            loc,
		logger:         logger,
	}
}

// ResolveWeek locates (or creates) the assignment for the calendar week
// containing weekStart. The earliest assignment of the series acts as the
// template: its due date anchors the week arithmetic and its static fields
// seed any synthesized sibling.
func (s *checkInService) ResolveWeek(ctx context.Context, clientID, formID primitive.ObjectID, weekStart time.Time) (*ResolvedCheckIn, error) {
	// 1. Load the series
	series, err := s.assignmentRepo.GetSeries(ctx, clientID, formID)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrNoCheckInAssigned
	}

	// 2. The earliest week is the template
	template := &series[0]
	if template.DueDate == nil {
		return nil, ErrNoUsableDueDate
	}
	baseMonday := template.DueDate.In(s.loc)

	// 3. Map the requested week to its index in the series
	week := domain.WeekForDueDate(baseMonday, weekStart.In(s.loc))

	form, err := s.formRepo.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}

	// 4. Return the existing assignment when the week is already there
	for i := range series {
		if series[i].RecurringWeek == week {
			return &ResolvedCheckIn{
				AssignmentID:  series[i].ID,
				Title:         form.Title,
				RecurringWeek: week,
				DueDate:       derefDueDate(series[i].DueDate),
			}, nil
		}
	}

	// 5. Synthesize the missing week from the template
	dueDate, err := domain.DueDateForWeek(baseMonday, week)
	if err != nil {
		return nil, err
	}
	totalWeeks := template.TotalWeeks
	if week > totalWeeks {
		totalWeeks = week
	}

	clone := template.CloneForWeek(week, dueDate, totalWeeks)
	assignmentID, err := s.assignmentRepo.Create(ctx, clone)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent resolve created the same week; use theirs.
			return s.ResolveWeek(ctx, clientID, formID, weekStart)
		}
		return nil, err
	}

	s.logger.Info("synthesized assignment for requested week",
		zap.String("client_id", clientID.Hex()),
		zap.String("form_id", formID.Hex()),
		zap.Int("week", week),
	)

	return &ResolvedCheckIn{
		AssignmentID:  assignmentID,
		Title:         form.Title,
		RecurringWeek: week,
		DueDate:       dueDate,
		Created:       true,
	}, nil
}

// SubmitResponse records the client's answers and completes the assignment.
// The response's recurringWeek is copied from the assignment here, inside the
// same operation that links the two, so the pair can never drift apart.
func (s *checkInService) SubmitResponse(ctx context.Context, clientID, assignmentID primitive.ObjectID, answers []domain.Answer) (*domain.Response, error) {
	// 1. Load and authorize the assignment
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if assignment.ClientID != clientID {
		return nil, ErrAssignmentAccessDenied
	}
	if assignment.IsCompleted() {
		return nil, ErrAlreadyCompleted
	}

	// 2. Score against the form's scale questions
	form, err := s.formRepo.GetByID(ctx, assignment.FormID)
	if err != nil {
		return nil, err
	}

	response := &domain.Response{
		AssignmentID:  assignmentID,
		ClientID:      clientID,
		FormID:        assignment.FormID,
		RecurringWeek: assignment.RecurringWeek,
		Answers:       answers,
		Score:         domain.ScoreAnswers(form.Questions, answers),
		SubmittedAt:   time.Now().UTC(),
	}

	// 3. Insert the response; the unique assignmentId index rejects a
	// concurrent duplicate submission.
	responseID, err := s.responseRepo.Create(ctx, response)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyCompleted
		}
		return nil, err
	}
	response.ID = responseID

	// 4. Link and complete the assignment
	if err := s.assignmentRepo.LinkResponse(ctx, assignmentID, responseID, response.SubmittedAt); err != nil {
		if errors.Is(err, repository.ErrUpdateFailed) {
			return nil, ErrAlreadyCompleted
		}
		return nil, err
	}

	return response, nil
}

// BackfillSeries creates every missing week of one recurring series. It is
// idempotent: existing weeks are excluded up front and the storage layer's
// unique week index backstops any race.
func (s *checkInService) BackfillSeries(ctx context.Context, template *domain.Assignment) (int, error) {
	if template == nil {
		return 0, domain.ErrInvalidArgument
	}
	if template.DueDate == nil {
		return 0, ErrNoUsableDueDate
	}
	if template.TotalWeeks < 2 {
		return 0, nil
	}
	baseMonday := template.DueDate.In(s.loc)

	series, err := s.assignmentRepo.GetSeries(ctx, template.ClientID, template.FormID)
	if err != nil {
		return 0, err
	}
	existing := make(map[int]bool, len(series))
	for i := range series {
		existing[series[i].RecurringWeek] = true
	}

	missing := domain.MissingWeeks(existing, template.TotalWeeks)
	if len(missing) == 0 {
		return 0, nil
	}

	clones := make([]*domain.Assignment, 0, len(missing))
	for _, week := range missing {
		dueDate, err := domain.DueDateForWeek(baseMonday, week)
		if err != nil {
			return 0, err
		}
		clones = append(clones, template.CloneForWeek(week, dueDate, template.TotalWeeks))
	}

	return s.assignmentRepo.BulkCreate(ctx, clones)
}

// BackfillAll expands every recurring series. Per-series failures are
// collected in the report and do not stop the batch.
func (s *checkInService) BackfillAll(ctx context.Context) (*BackfillReport, error) {
	templates, err := s.assignmentRepo.ListRecurringTemplates(ctx)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	for i := range templates {
		template := &templates[i]
		report.SeriesProcessed++

		created, err := s.BackfillSeries(ctx, template)
		if err != nil {
			if errors.Is(err, ErrNoUsableDueDate) {
				report.Skipped = append(report.Skipped,
					fmt.Sprintf("series client=%s form=%s: no due date", template.ClientID.Hex(), template.FormID.Hex()))
				continue
			}
			report.Errors = append(report.Errors,
				fmt.Sprintf("series client=%s form=%s: %v", template.ClientID.Hex(), template.FormID.Hex(), err))
			continue
		}
		report.AssignmentsCreated += created
	}

	s.logger.Info("backfill completed",
		zap.Int("series_processed", report.SeriesProcessed),
		zap.Int("assignments_created", report.AssignmentsCreated),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// WindowStatus resolves the check-in window for an assignment at the given
// instant.
func (s *checkInService) WindowStatus(ctx context.Context, assignmentID primitive.ObjectID, now time.Time) (*domain.Window, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if assignment.DueDate == nil {
		return nil, ErrNoUsableDueDate
	}

	window, err := domain.ComputeWindow(now.In(s.loc), assignment.DueDate.In(s.loc), assignment.CheckInWindow)
	if err != nil {
		return nil, err
	}
	return &window, nil
}

func derefDueDate(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
