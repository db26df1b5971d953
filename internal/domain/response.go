package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Answer is one answered question within a response. Value is set for number
// and scale questions, Text for free-form ones.
type Answer struct {
	QuestionID string   `bson:"questionId" json:"questionId"`
	Text       string   `bson:"text,omitempty" json:"text,omitempty"`
	Value      *float64 `bson:"value,omitempty" json:"value,omitempty"`
}

// Response is one submitted answer-set, linked 1:1 to the assignment it
// resolves. RecurringWeek is always copied from the assignment at creation
// time, never supplied by the caller, so the two can never drift.
type Response struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssignmentID  primitive.ObjectID `bson:"assignmentId" json:"assignmentId"`
	ClientID      primitive.ObjectID `bson:"clientId" json:"clientId"`
	FormID        primitive.ObjectID `bson:"formId" json:"formId"`
	RecurringWeek int                `bson:"recurringWeek" json:"recurringWeek"`
	Answers       []Answer           `bson:"answers" json:"answers"`
	Score         *float64           `bson:"score,omitempty" json:"score,omitempty"` // 0–100, from scale answers
	SubmittedAt   time.Time          `bson:"submittedAt" json:"submittedAt"`
}

// ScoreAnswers averages the scale-question values in answers and maps the
// result onto 0–100. Returns nil when no scale answers are present.
func ScoreAnswers(questions []Question, answers []Answer) *float64 {
	scale := make(map[string]bool, len(questions))
	for _, q := range questions {
		if q.Type == QuestionScale {
			scale[q.ID] = true
		}
	}

	var sum float64
	var count int
	for _, a := range answers {
		if a.Value == nil || !scale[a.QuestionID] {
			continue
		}
		v := *a.Value
		if v < 0 {
			v = 0
		}
		if v > ScaleMax {
			v = ScaleMax
		}
		sum += v
		count++
	}
	if count == 0 {
		return nil
	}

	score := sum / float64(count) / ScaleMax * 100
	return &score
}
