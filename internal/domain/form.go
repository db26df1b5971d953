package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QuestionType distinguishes how an answer is captured and scored.
type QuestionType string

const (
	QuestionText   QuestionType = "text"
	QuestionNumber QuestionType = "number"
	QuestionScale  QuestionType = "scale" // 1..ScaleMax rating, feeds the response score
)

// ScaleMax is the top of the rating scale for scale questions.
const ScaleMax = 5

// Question is one entry in a check-in form.
type Question struct {
	ID       string       `bson:"id" json:"id"` // Stable key answers refer back to
	Prompt   string       `bson:"prompt" json:"prompt"`
	Type     QuestionType `bson:"type" json:"type"`
	Required bool         `bson:"required,omitempty" json:"required,omitempty"`
}

// CheckInForm is a questionnaire a coach assigns to clients on a weekly
// recurrence.
type CheckInForm struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID     primitive.ObjectID `bson:"coachId" json:"coachId"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Questions   []Question         `bson:"questions" json:"questions"`
	IsRecurring bool               `bson:"isRecurring" json:"isRecurring"`
	Frequency   string             `bson:"frequency,omitempty" json:"frequency,omitempty"`
	TotalWeeks  int                `bson:"totalWeeks,omitempty" json:"totalWeeks,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
