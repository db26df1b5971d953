package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for assignment lifecycle
type AssignmentStatus string

const (
	StatusPending   AssignmentStatus = "pending"
	StatusActive    AssignmentStatus = "active"    // Window is open, client may submit
	StatusCompleted AssignmentStatus = "completed" // Response linked
	StatusOverdue   AssignmentStatus = "overdue"   // Window closed without a response
)

// Marker field names persisted on an Assignment document. The reminder
// dispatcher acquires these through conditional updates so that overlapping
// scans cannot both observe "not sent".
const (
	MarkerWindowOpen   = "windowOpenEmailSentDate"
	MarkerReminder24h  = "reminder24hSent"
	MarkerWindowClosed = "windowClosedEmailSent"
	MarkerLastOverdue  = "lastOverdueEmailSentAt"
)

// Assignment is one client's obligation to complete one check-in form in one
// week. Assignments for the same (client, form) pair form a linear weekly
// series: dueDate for week N = dueDate(week 1) + 7×(N−1) days, anchored to
// Monday 09:00 local, and each recurringWeek value maps to at most one
// assignment.
type Assignment struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID primitive.ObjectID `bson:"clientId" json:"clientId"`
	CoachID  primitive.ObjectID `bson:"coachId" json:"coachId"` // Denormalized for queries/auth
	FormID   primitive.ObjectID `bson:"formId" json:"formId"`

	DueDate       *time.Time          `bson:"dueDate,omitempty" json:"dueDate,omitempty"` // Nominally a Monday 09:00 local
	CheckInWindow CheckInWindowConfig `bson:"checkInWindow" json:"checkInWindow"`
	Status        AssignmentStatus    `bson:"status" json:"status"`

	IsRecurring   bool   `bson:"isRecurring" json:"isRecurring"`
	RecurringWeek int    `bson:"recurringWeek" json:"recurringWeek"` // 1-based index within the series
	TotalWeeks    int    `bson:"totalWeeks" json:"totalWeeks"`
	Frequency     string `bson:"frequency,omitempty" json:"frequency,omitempty"` // e.g. "weekly"

	ResponseID  *primitive.ObjectID `bson:"responseId,omitempty" json:"responseId,omitempty"`
	CompletedAt *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`

	// Reminder send markers. WindowOpenEmailSentDate holds a "YYYY-MM-DD"
	// day string (the notice may repeat on later days the window is open);
	// Reminder24hSent and WindowClosedEmailSent are set-once timestamps;
	// LastOverdueEmailSentAt advances every time a daily overdue email
	// goes out.
	WindowOpenEmailSentDate string     `bson:"windowOpenEmailSentDate,omitempty" json:"-"`
	Reminder24hSent         *time.Time `bson:"reminder24hSent,omitempty" json:"-"`
	WindowClosedEmailSent   *time.Time `bson:"windowClosedEmailSent,omitempty" json:"-"`
	LastOverdueEmailSentAt  *time.Time `bson:"lastOverdueEmailSentAt,omitempty" json:"-"`

	AssignedAt time.Time `bson:"assignedAt" json:"assignedAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (a *Assignment) IsCompleted() bool {
	return a.Status == StatusCompleted
}

// CloneForWeek synthesizes the sibling assignment for another week of the
// same series, copying the static fields from a (the template) and stamping
// the new week's due date and index. Send markers and response links are
// deliberately not copied.
func (a *Assignment) CloneForWeek(week int, dueDate time.Time, totalWeeks int) *Assignment {
	due := dueDate
	return &Assignment{
		ClientID:      a.ClientID,
		CoachID:       a.CoachID,
		FormID:        a.FormID,
		DueDate:       &due,
		CheckInWindow: a.CheckInWindow,
		Status:        StatusPending,
		IsRecurring:   true,
		RecurringWeek: week,
		TotalWeeks:    totalWeeks,
		Frequency:     a.Frequency,
	}
}
