package api

import (
	"coachkit/checkin-app/internal/domain"
	"coachkit/checkin-app/internal/service"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CheckInHandler holds the check-in service dependency.
type CheckInHandler struct {
	checkInService service.CheckInService
}

// NewCheckInHandler creates a new CheckInHandler.
func NewCheckInHandler(checkInService service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService}
}

// --- Request/Response Structs ---

type ResolveCheckInRequest struct {
	FormID string `json:"formId" binding:"required"`
	// Any instant inside the requested week, RFC 3339 or YYYY-MM-DD.
	// Defaults to now.
	WeekStart string `json:"weekStart"`
}

type SubmitResponseRequest struct {
	Answers []domain.Answer `json:"answers" binding:"required"`
}

type ResponseDetail struct {
	ID            string          `json:"id"`
	AssignmentID  string          `json:"assignmentId"`
	RecurringWeek int             `json:"recurringWeek"`
	Answers       []domain.Answer `json:"answers"`
	Score         *float64        `json:"score,omitempty"`
	SubmittedAt   time.Time       `json:"submittedAt"`
}

// --- Handler Methods ---

// ResolveCheckIn godoc
// @Summary Resolve the check-in for a calendar week
// @Description Maps a week to the client's assignment for it, creating the
// @Description assignment from the series template when it does not exist yet.
// @Tags CheckIns
// @Accept json
// @Produce json
// @Param request body ResolveCheckInRequest true "Form and week to resolve"
// @Success 200 {object} service.ResolvedCheckIn "Resolved check-in"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "No check-in assigned for this form"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /checkins/resolve [post]
func (h *CheckInHandler) ResolveCheckIn(c *gin.Context) {
	clientID, err := currentUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid user identity in token")
		return
	}

	var req ResolveCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	formID, err := primitive.ObjectIDFromHex(req.FormID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid form ID format")
		return
	}

	weekStart := time.Now()
	if req.WeekStart != "" {
		weekStart, err = parseInstant(req.WeekStart)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "weekStart must be RFC 3339 or YYYY-MM-DD")
			return
		}
	}

	resolved, err := h.checkInService.ResolveWeek(c.Request.Context(), clientID, formID, weekStart)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoCheckInAssigned):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNoUsableDueDate):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to resolve check-in")
		}
		return
	}

	c.JSON(http.StatusOK, resolved)
}

// SubmitResponse godoc
// @Summary Submit answers for a check-in assignment
// @Description Records the client's answers and marks the assignment completed.
// @Tags CheckIns
// @Accept json
// @Produce json
// @Param assignmentId path string true "Assignment ID"
// @Param request body SubmitResponseRequest true "Answers"
// @Success 201 {object} ResponseDetail "Response recorded"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Assignment belongs to another client"
// @Failure 404 {object} gin.H "Assignment not found"
// @Failure 409 {object} gin.H "Assignment already completed"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /checkins/{assignmentId}/response [post]
func (h *CheckInHandler) SubmitResponse(c *gin.Context) {
	clientID, err := currentUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid user identity in token")
		return
	}

	assignmentID, err := primitive.ObjectIDFromHex(c.Param("assignmentId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid assignment ID format")
		return
	}

	var req SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	response, err := h.checkInService.SubmitResponse(c.Request.Context(), clientID, assignmentID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAssignmentAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrAlreadyCompleted):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to submit response")
		}
		return
	}

	c.JSON(http.StatusCreated, ResponseDetail{
		ID:            response.ID.Hex(),
		AssignmentID:  response.AssignmentID.Hex(),
		RecurringWeek: response.RecurringWeek,
		Answers:       response.Answers,
		Score:         response.Score,
		SubmittedAt:   response.SubmittedAt,
	})
}

// WindowStatus godoc
// @Summary Get the computed check-in window for an assignment
// @Description Reports opensAt, closesAt and the open/overdue flags as of now.
// @Tags CheckIns
// @Produce json
// @Param assignmentId path string true "Assignment ID"
// @Success 200 {object} domain.Window "Computed window"
// @Failure 400 {object} gin.H "Invalid assignment ID"
// @Failure 404 {object} gin.H "Assignment not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /checkins/{assignmentId}/window [get]
func (h *CheckInHandler) WindowStatus(c *gin.Context) {
	assignmentID, err := primitive.ObjectIDFromHex(c.Param("assignmentId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid assignment ID format")
		return
	}

	window, err := h.checkInService.WindowStatus(c.Request.Context(), assignmentID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNoUsableDueDate):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to compute window")
		}
		return
	}

	c.JSON(http.StatusOK, window)
}

// parseInstant accepts either an RFC 3339 timestamp or a bare date.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
