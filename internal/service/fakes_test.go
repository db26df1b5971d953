package service

import (
	"coachkit/checkin-app/internal/domain"
	"coachkit/checkin-app/internal/mailer"
	"coachkit/checkin-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- In-memory repository fakes ---
//
// The fakes reproduce the storage-layer behaviors the services lean on: the
// unique (client, form, week) constraint, the one-response-per-assignment
// constraint, and the conditional marker acquisitions.

type fakeAssignmentRepo struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*domain.Assignment
	// bulkSizes records the chunk sizes passed to BulkCreate.
	bulkSizes []int
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{items: make(map[primitive.ObjectID]*domain.Assignment)}
}

func (r *fakeAssignmentRepo) seriesKey(a *domain.Assignment) string {
	return fmt.Sprintf("%s/%s/%d", a.ClientID.Hex(), a.FormID.Hex(), a.RecurringWeek)
}

func (r *fakeAssignmentRepo) hasWeekLocked(a *domain.Assignment) bool {
	for _, existing := range r.items {
		if existing.IsRecurring && a.IsRecurring && r.seriesKey(existing) == r.seriesKey(a) {
			return true
		}
	}
	return false
}

func (r *fakeAssignmentRepo) Create(_ context.Context, a *domain.Assignment) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasWeekLocked(a) {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	a.ID = primitive.NewObjectID()
	if a.Status == "" {
		a.Status = domain.StatusPending
	}
	copied := *a
	r.items[a.ID] = &copied
	return a.ID, nil
}

func (r *fakeAssignmentRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAssignmentRepo) GetSeries(_ context.Context, clientID, formID primitive.ObjectID) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var series []domain.Assignment
	for _, a := range r.items {
		if a.ClientID == clientID && a.FormID == formID {
			series = append(series, *a)
		}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].RecurringWeek < series[j].RecurringWeek })
	return series, nil
}

func (r *fakeAssignmentRepo) ListRecurringTemplates(_ context.Context) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var templates []domain.Assignment
	for _, a := range r.items {
		if a.IsRecurring && a.RecurringWeek == 1 {
			templates = append(templates, *a)
		}
	}
	return templates, nil
}

func (r *fakeAssignmentRepo) ListIncomplete(_ context.Context) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Assignment
	for _, a := range r.items {
		if a.Status != domain.StatusCompleted {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) BulkCreate(_ context.Context, assignments []*domain.Assignment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := 0
	for _, bounds := range repository.ChunkBounds(len(assignments)) {
		chunk := assignments[bounds[0]:bounds[1]]
		r.bulkSizes = append(r.bulkSizes, len(chunk))
		for _, a := range chunk {
			if r.hasWeekLocked(a) {
				continue
			}
			a.ID = primitive.NewObjectID()
			if a.Status == "" {
				a.Status = domain.StatusPending
			}
			copied := *a
			r.items[a.ID] = &copied
			created++
		}
	}
	return created, nil
}

func (r *fakeAssignmentRepo) LinkResponse(_ context.Context, assignmentID, responseID primitive.ObjectID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[assignmentID]
	if !ok || a.ResponseID != nil {
		return repository.ErrUpdateFailed
	}
	a.ResponseID = &responseID
	a.Status = domain.StatusCompleted
	a.CompletedAt = &completedAt
	return nil
}

func (r *fakeAssignmentRepo) UpdateStatus(_ context.Context, assignmentID primitive.ObjectID, status domain.AssignmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[assignmentID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	return nil
}

func (r *fakeAssignmentRepo) AcquireSendMarker(_ context.Context, id primitive.ObjectID, field string, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return false, nil
	}
	switch field {
	case domain.MarkerReminder24h:
		if a.Reminder24hSent != nil {
			return false, nil
		}
		a.Reminder24hSent = &sentAt
	case domain.MarkerWindowClosed:
		if a.WindowClosedEmailSent != nil {
			return false, nil
		}
		a.WindowClosedEmailSent = &sentAt
	default:
		return false, fmt.Errorf("unknown marker field %q", field)
	}
	return true, nil
}

func (r *fakeAssignmentRepo) ClearSendMarker(_ context.Context, id primitive.ObjectID, field string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	switch field {
	case domain.MarkerReminder24h:
		a.Reminder24hSent = nil
	case domain.MarkerWindowClosed:
		a.WindowClosedEmailSent = nil
	}
	return nil
}

func (r *fakeAssignmentRepo) AcquireDailyMarker(_ context.Context, id primitive.ObjectID, field, day string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return "", false, nil
	}
	if field != domain.MarkerWindowOpen {
		return "", false, fmt.Errorf("unknown daily marker field %q", field)
	}
	if a.WindowOpenEmailSentDate == day {
		return "", false, nil
	}
	prev := a.WindowOpenEmailSentDate
	a.WindowOpenEmailSentDate = day
	return prev, true, nil
}

func (r *fakeAssignmentRepo) RestoreDailyMarker(_ context.Context, id primitive.ObjectID, field, prev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.items[id]; ok && field == domain.MarkerWindowOpen {
		a.WindowOpenEmailSentDate = prev
	}
	return nil
}

func (r *fakeAssignmentRepo) AcquireOverdueMarker(_ context.Context, id primitive.ObjectID, sentAt, notAfter time.Time) (*time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, false, nil
	}
	if a.LastOverdueEmailSentAt != nil && !a.LastOverdueEmailSentAt.Before(notAfter) {
		return nil, false, nil
	}
	prev := a.LastOverdueEmailSentAt
	a.LastOverdueEmailSentAt = &sentAt
	return prev, true, nil
}

func (r *fakeAssignmentRepo) RestoreOverdueMarker(_ context.Context, id primitive.ObjectID, prev *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.items[id]; ok {
		a.LastOverdueEmailSentAt = prev
	}
	return nil
}

// --- User repo fake ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
}

func (r *fakeUserRepo) add(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == primitive.NilObjectID {
		u.ID = primitive.NewObjectID()
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	r.users[u.ID] = u
	return u.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) AddClientIDToCoach(_ context.Context, coachID, clientID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	coach, ok := r.users[coachID]
	if !ok {
		return repository.ErrNotFound
	}
	coach.ClientIDs = append(coach.ClientIDs, clientID)
	return nil
}

func (r *fakeUserRepo) SetCoachForClient(_ context.Context, clientID, coachID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.users[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	client.CoachID = &coachID
	return nil
}

func (r *fakeUserRepo) GetClientsByCoachID(_ context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var clients []domain.User
	for _, u := range r.users {
		if u.CoachID != nil && *u.CoachID == coachID {
			clients = append(clients, *u)
		}
	}
	return clients, nil
}

// --- Form repo fake ---

type fakeFormRepo struct {
	mu    sync.Mutex
	forms map[primitive.ObjectID]*domain.CheckInForm
}

func newFakeFormRepo() *fakeFormRepo {
	return &fakeFormRepo{forms: make(map[primitive.ObjectID]*domain.CheckInForm)}
}

func (r *fakeFormRepo) add(f *domain.CheckInForm) *domain.CheckInForm {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID == primitive.NilObjectID {
		f.ID = primitive.NewObjectID()
	}
	r.forms[f.ID] = f
	return f
}

func (r *fakeFormRepo) Create(_ context.Context, f *domain.CheckInForm) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = primitive.NewObjectID()
	r.forms[f.ID] = f
	return f.ID, nil
}

func (r *fakeFormRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.CheckInForm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (r *fakeFormRepo) GetByCoachID(_ context.Context, coachID primitive.ObjectID) ([]domain.CheckInForm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var forms []domain.CheckInForm
	for _, f := range r.forms {
		if f.CoachID == coachID {
			forms = append(forms, *f)
		}
	}
	return forms, nil
}

// --- Response repo fake ---

type fakeResponseRepo struct {
	mu        sync.Mutex
	responses map[primitive.ObjectID]*domain.Response
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{responses: make(map[primitive.ObjectID]*domain.Response)}
}

func (r *fakeResponseRepo) Create(_ context.Context, resp *domain.Response) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.responses {
		if existing.AssignmentID == resp.AssignmentID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	resp.ID = primitive.NewObjectID()
	copied := *resp
	r.responses[resp.ID] = &copied
	return resp.ID, nil
}

func (r *fakeResponseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *resp
	return &copied, nil
}

func (r *fakeResponseRepo) GetByAssignmentID(_ context.Context, assignmentID primitive.ObjectID) (*domain.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resp := range r.responses {
		if resp.AssignmentID == assignmentID {
			copied := *resp
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

// --- Mailer fake ---

type sentMail struct {
	To      string
	Subject string
	Kind    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) (mailer.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return mailer.SendResult{}, errors.New("smtp unavailable")
	}
	to := ""
	if len(msg.To) > 0 {
		to = msg.To[0]
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: msg.Subject, Kind: msg.Metadata["Kind"]})
	return mailer.SendResult{MessageID: fmt.Sprintf("msg-%d", len(m.sent)), SentAt: time.Now()}, nil
}

func (m *fakeMailer) countKind(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
