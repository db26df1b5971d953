package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin" // Ops tooling: manual reminder runs, backfill
)

// ClientStatus tracks whether a client is actively coached. Reminders only go
// to active clients.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientPaused   ClientStatus = "paused"
	ClientArchived ClientStatus = "archived"
)

// User represents a user in the system (a Coach, a Client, or an Admin).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Coach-specific ---
	// Stores ObjectIDs of Clients managed by this Coach.
	ClientIDs []primitive.ObjectID `bson:"clientIds,omitempty" json:"clientIds,omitempty"`

	// --- Client-specific ---
	CoachID *primitive.ObjectID `bson:"coachId,omitempty" json:"coachId,omitempty"`
	Status  ClientStatus        `bson:"status,omitempty" json:"status,omitempty"`
	// Reminder eligibility flags checked by the dispatcher.
	OnboardingComplete        bool `bson:"onboardingComplete,omitempty" json:"onboardingComplete,omitempty"`
	EmailNotificationsEnabled bool `bson:"emailNotificationsEnabled,omitempty" json:"emailNotificationsEnabled,omitempty"`
}

func (u *User) IsCoach() bool {
	return u.Role == RoleCoach
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// CanReceiveReminders reports whether the dispatcher may email this client.
// A test-override recipient bypasses the notification opt-out but not the
// onboarding/status checks.
func (u *User) CanReceiveReminders(overrideRecipient string) bool {
	if !u.IsClient() || !u.OnboardingComplete || u.Status != ClientActive {
		return false
	}
	return u.EmailNotificationsEnabled || overrideRecipient != ""
}
