package service

import (
	"coachkit/checkin-app/internal/domain"
	"coachkit/checkin-app/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrClientNotFound        = errors.New("client user not found")
	ErrClientNotRole         = errors.New("user found but is not a client")
	ErrClientAlreadyCoached  = errors.New("client is already assigned to a coach")
	ErrClientNotManaged      = errors.New("client is not managed by this coach")
	ErrFormNotFound          = errors.New("check-in form not found")
	ErrFormAccessDenied      = errors.New("access denied to this form")
	ErrAssignmentExists      = errors.New("client already has an assignment for this form and week")
)

// --- Service Interface ---
type CoachService interface {
	// Client Management
	AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, clientEmail string) (*domain.User, error)
	GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)

	// Form Management
	CreateForm(ctx context.Context, form *domain.CheckInForm) (*domain.CheckInForm, error)
	GetForms(ctx context.Context, coachID primitive.ObjectID) ([]domain.CheckInForm, error)

	// Assignment Management
	AssignForm(ctx context.Context, coachID, clientID, formID primitive.ObjectID, totalWeeks int, startDate time.Time, window *domain.CheckInWindowConfig) (*domain.Assignment, error)
}

// --- Service Implementation ---

// coachService implements the CoachService interface.
type coachService struct {
	userRepo       repository.UserRepository
	formRepo       repository.FormRepository
	assignmentRepo repository.AssignmentRepository
}

// NewCoachService creates a new instance of coachService.
func NewCoachService(
	userRepo repository.UserRepository,
	formRepo repository.FormRepository,
	assignmentRepo repository.AssignmentRepository,
) CoachService {
	return &coachService{
		userRepo:       userRepo,
		formRepo:       formRepo,
		assignmentRepo: assignmentRepo,
	}
}

// === Client Management ===

// AddClientByEmail finds a client by email and assigns them to the coach.
func (s *coachService) AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, clientEmail string) (*domain.User, error) {
	// 1. Validate input
	if coachID == primitive.NilObjectID || clientEmail == "" {
		return nil, errors.New("coach ID and client email are required")
	}

	// 2. Find the potential client user
	client, err := s.userRepo.GetByEmail(ctx, clientEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	// 3. Verify the user is actually a client
	if client.Role != domain.RoleClient {
		return nil, ErrClientNotRole
	}

	// 4. Check if the client is already assigned to a coach
	if client.CoachID != nil && *client.CoachID != primitive.NilObjectID {
		if *client.CoachID == coachID {
			// Already managed by this coach; treat as success.
			return client, nil
		}
		return nil, ErrClientAlreadyCoached
	}

	// 5. Link both sides (coach's client list, client's coach reference)
	if err := s.userRepo.AddClientIDToCoach(ctx, coachID, client.ID); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetCoachForClient(ctx, client.ID, coachID); err != nil {
		return nil, err
	}

	client.CoachID = &coachID
	return client, nil
}

// GetManagedClients retrieves the list of clients managed by the coach.
func (s *coachService) GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	if coachID == primitive.NilObjectID {
		return nil, errors.New("coach ID is required")
	}
	clients, err := s.userRepo.GetClientsByCoachID(ctx, coachID)
	if err != nil {
		return nil, err
	}
	// Clear password hashes before returning
	for i := range clients {
		clients[i].PasswordHash = ""
	}
	return clients, nil
}

// === Form Management ===

// CreateForm stores a new check-in form for the coach.
func (s *coachService) CreateForm(ctx context.Context, form *domain.CheckInForm) (*domain.CheckInForm, error) {
	if form == nil || form.CoachID == primitive.NilObjectID || form.Title == "" {
		return nil, errors.New("form requires coachId and title")
	}
	if form.IsRecurring && form.Frequency == "" {
		form.Frequency = "weekly"
	}

	formID, err := s.formRepo.Create(ctx, form)
	if err != nil {
		return nil, err
	}
	form.ID = formID
	return form, nil
}

// GetForms retrieves all forms owned by the coach.
func (s *coachService) GetForms(ctx context.Context, coachID primitive.ObjectID) ([]domain.CheckInForm, error) {
	if coachID == primitive.NilObjectID {
		return nil, errors.New("coach ID is required")
	}
	return s.formRepo.GetByCoachID(ctx, coachID)
}

// === Assignment Management ===

// AssignForm creates the week-1 assignment of a new recurring series for a
// client. The due date is anchored to Monday 09:00 of startDate's week;
// subsequent weeks are created lazily by backfill or on-demand resolution.
func (s *coachService) AssignForm(
	ctx context.Context,
	coachID, clientID, formID primitive.ObjectID,
	totalWeeks int,
	startDate time.Time,
	window *domain.CheckInWindowConfig,
) (*domain.Assignment, error) {
	// 1. Validate input
	if coachID == primitive.NilObjectID || clientID == primitive.NilObjectID || formID == primitive.NilObjectID {
		return nil, errors.New("coach, client, and form IDs are required")
	}
	if totalWeeks < 1 {
		return nil, domain.ErrInvalidArgument
	}
	if startDate.IsZero() {
		startDate = time.Now()
	}

	// 2. Verify the form exists and belongs to this coach
	form, err := s.formRepo.GetByID(ctx, formID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	if form.CoachID != coachID {
		return nil, ErrFormAccessDenied
	}

	// 3. Verify the client is managed by this coach
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.CoachID == nil || *client.CoachID != coachID {
		return nil, ErrClientNotManaged
	}

	// 4. Resolve the window config, failing fast on a malformed one rather
	// than discovering it during a reminder scan.
	cfg := domain.DefaultCheckInWindow
	if window != nil {
		cfg = *window
	}
	dueDate := domain.AnchorMonday(startDate)
	if _, err := domain.ComputeWindow(dueDate, dueDate, cfg); err != nil {
		return nil, err
	}

	// 5. Create the week-1 assignment
	assignment := &domain.Assignment{
		ClientID:      clientID,
		CoachID:       coachID,
		FormID:        formID,
		DueDate:       &dueDate,
		CheckInWindow: cfg,
		Status:        domain.StatusPending,
		IsRecurring:   true,
		RecurringWeek: 1,
		TotalWeeks:    totalWeeks,
		Frequency:     form.Frequency,
	}

	assignmentID, err := s.assignmentRepo.Create(ctx, assignment)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAssignmentExists
		}
		return nil, err
	}
	assignment.ID = assignmentID
	return assignment, nil
}
