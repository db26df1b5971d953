package repository

import (
	"coachkit/checkin-app/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate document")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// BatchWriteLimit is the document-store ceiling on operations per batch
// write. Bulk creates must be chunked to stay under it.
const BatchWriteLimit = 500

// ChunkBounds splits n items into consecutive [start, end) index ranges of
// at most BatchWriteLimit each. Bulk writers iterate these instead of
// carrying their own chunk arithmetic.
func ChunkBounds(n int) [][2]int {
	var bounds [][2]int
	for start := 0; start < n; start += BatchWriteLimit {
		end := start + BatchWriteLimit
		if end > n {
			end = n
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	AddClientIDToCoach(ctx context.Context, coachID, clientID primitive.ObjectID) error
	SetCoachForClient(ctx context.Context, clientID, coachID primitive.ObjectID) error
	GetClientsByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)
}

// FormRepository defines the interface for interacting with check-in forms.
type FormRepository interface {
	Create(ctx context.Context, form *domain.CheckInForm) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.CheckInForm, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.CheckInForm, error)
}

// AssignmentRepository defines the interface for interacting with assignment
// data, including the conditional marker updates the reminder dispatcher
// relies on for exactly-once sends.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Assignment, error)
	// GetSeries returns all assignments for a (client, form) pair, ordered
	// by recurringWeek ascending.
	GetSeries(ctx context.Context, clientID, formID primitive.ObjectID) ([]domain.Assignment, error)
	// ListRecurringTemplates returns the week-1 assignment of every
	// recurring series (the backfill templates).
	ListRecurringTemplates(ctx context.Context) ([]domain.Assignment, error)
	// ListIncomplete returns all assignments that have not been completed,
	// the reminder dispatcher's scan set.
	ListIncomplete(ctx context.Context) ([]domain.Assignment, error)
	// BulkCreate inserts assignments in chunks of at most BatchWriteLimit.
	BulkCreate(ctx context.Context, assignments []*domain.Assignment) (int, error)
	// LinkResponse marks an assignment completed with the given response,
	// only if no response is linked yet. Returns ErrUpdateFailed when the
	// assignment was already completed.
	LinkResponse(ctx context.Context, assignmentID, responseID primitive.ObjectID, completedAt time.Time) error
	UpdateStatus(ctx context.Context, assignmentID primitive.ObjectID, status domain.AssignmentStatus) error

	// --- Send-marker check-and-set ---
	// Overlapping dispatcher runs race on "read marker, send, write
	// marker"; these conditional updates make acquisition atomic so only
	// one run sends. Each Acquire has a matching rollback used when the
	// mail send fails, leaving the reminder retryable on the next tick.

	// AcquireSendMarker sets a set-once timestamp marker if it is still
	// unset. acquired reports whether this caller won.
	AcquireSendMarker(ctx context.Context, id primitive.ObjectID, field string, sentAt time.Time) (acquired bool, err error)
	ClearSendMarker(ctx context.Context, id primitive.ObjectID, field string) error

	// AcquireDailyMarker sets a "YYYY-MM-DD" day marker if it does not
	// already equal day, returning the previous value for rollback.
	AcquireDailyMarker(ctx context.Context, id primitive.ObjectID, field, day string) (prev string, acquired bool, err error)
	RestoreDailyMarker(ctx context.Context, id primitive.ObjectID, field, prev string) error

	// AcquireOverdueMarker advances lastOverdueEmailSentAt to sentAt if it
	// is unset or older than notAfter, returning the previous value for
	// rollback.
	AcquireOverdueMarker(ctx context.Context, id primitive.ObjectID, sentAt, notAfter time.Time) (prev *time.Time, acquired bool, err error)
	RestoreOverdueMarker(ctx context.Context, id primitive.ObjectID, prev *time.Time) error
}

// ResponseRepository defines the interface for interacting with submitted
// check-in responses.
type ResponseRepository interface {
	Create(ctx context.Context, response *domain.Response) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Response, error)
	GetByAssignmentID(ctx context.Context, assignmentID primitive.ObjectID) (*domain.Response, error)
}
