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

// CoachHandler holds the coach service dependency.
type CoachHandler struct {
	coachService service.CoachService
}

// NewCoachHandler creates a new CoachHandler.
func NewCoachHandler(coachService service.CoachService) *CoachHandler {
	return &CoachHandler{coachService: coachService}
}

// --- Request/Response Structs ---

type AddClientRequest struct {
	ClientEmail string `json:"clientEmail" binding:"required,email"`
}

type CreateFormRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Questions   []domain.Question `json:"questions" binding:"required,min=1"`
	Frequency   string            `json:"frequency"`
	TotalWeeks  int               `json:"totalWeeks"`
}

type AssignFormRequest struct {
	FormID     string `json:"formId" binding:"required"`
	TotalWeeks int    `json:"totalWeeks" binding:"required,min=1"`
	// The plan's first week; the due date anchors to that week's Monday.
	StartDate string `json:"startDate" binding:"required"`
	// Optional per-assignment window override. Defaults to the standard
	// Friday-to-Tuesday window.
	Window *domain.CheckInWindowConfig `json:"window"`
}

type AssignmentDetail struct {
	ID            string                     `json:"id"`
	ClientID      string                     `json:"clientId"`
	FormID        string                     `json:"formId"`
	DueDate       *time.Time                 `json:"dueDate,omitempty"`
	CheckInWindow domain.CheckInWindowConfig `json:"checkInWindow"`
	Status        domain.AssignmentStatus    `json:"status"`
	RecurringWeek int                        `json:"recurringWeek"`
	TotalWeeks    int                        `json:"totalWeeks"`
}

// --- Handler Methods ---

// AddClientByEmail godoc
// @Summary Add a client to the coach's roster
// @Description Finds an existing client account by email and links it to the coach.
// @Tags Coach
// @Accept json
// @Produce json
// @Param request body AddClientRequest true "Client email"
// @Success 200 {object} UserResponse "Client linked"
// @Failure 400 {object} gin.H "Invalid input or user is not a client"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 409 {object} gin.H "Client already has a coach"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /coach/clients [post]
func (h *CoachHandler) AddClientByEmail(c *gin.Context) {
	coachID, err := currentUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid user identity in token")
		return
	}

	var req AddClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	client, err := h.coachService.AddClientByEmail(c.Request.Context(), coachID, req.ClientEmail)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClientNotRole):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrClientAlreadyCoached):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to add client")
		}
		return
	}

	c.JSON(http.StatusOK, MapUserToResponse(client))
}

// GetManagedClients godoc
// @Summary List the coach's clients
// @Tags Coach
// @Produce json
// @Success 200 {array} UserResponse "Managed clients"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /coach/clients [get]
func (h *CoachHandler) GetManagedClients(c *gin.Context) {
	coachID, err := currentUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid user identity in token")
		return
	}

	clients, err := h.coachService.GetManagedClients(c.Request.Context(), coachID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list clients")
		return
	}

	out := make([]UserResponse, len(clients))
	for i := range clients {
		out[i] = MapUserToResponse(&clients[i])
	}
	c.JSON(http.StatusOK, out)
}

// CreateForm godoc
// @Summary Create a check-in form
// @Description Creates a questionnaire the coach can assign to clients.
// @Tags Coach
// @Accept json
// @Produce json
// @Param request body CreateFormRequest true "Form definition"
// @Success 201 {object} domain.CheckInForm "Form created"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /coach/forms [post]
func (h *CoachHandler) CreateForm(c *gin.Context) {
	coachID, err := currentUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid user identity in token")
		return
	}

	var req CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	form, err := h.coachService.CreateForm(c.Request.Context(), &domain.CheckInForm{
		CoachID:     coachID,
		Title:       req.Title,
		Description: req.Description,
		Questions:   req.Questions,
		IsRecurring: true,
		Frequency:   req.Frequency,
		TotalWeeks:  req.TotalWeeks,
	})
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to create form")
		return
	}

	c.JSON(http.StatusCreated, form)
}

// GetForms godoc
// @Summary List the coach's check-in forms
// @Tags Coach
// @Produce json
// @Success 200 {array} domain.CheckInForm "Forms"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /coach/forms [get]
func (h *CoachHandler) GetForms(c *gin.Context) {
	coachID, err := currentUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid user identity in token")
		return
	}

	forms, err := h.coachService.GetForms(c.Request.Context(), coachID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list forms")
		return
	}
	c.JSON(http.StatusOK, forms)
}

// AssignForm godoc
// @Summary Assign a recurring check-in form to a client
// @Description Creates the week-1 assignment of a recurring series. Later weeks
// @Description are created on demand or by the backfill job.
// @Tags Coach
// @Accept json
// @Produce json
// @Param clientId path string true "Client ID"
// @Param request body AssignFormRequest true "Assignment details"
// @Success 201 {object} AssignmentDetail "Assignment created"
// @Failure 400 {object} gin.H "Invalid input or window configuration"
// @Failure 403 {object} gin.H "Client or form not managed by this coach"
// @Failure 404 {object} gin.H "Client or form not found"
// @Failure 409 {object} gin.H "Assignment already exists"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /coach/clients/{clientId}/assignments [post]
func (h *CoachHandler) AssignForm(c *gin.Context) {
	coachID, err := currentUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Invalid user identity in token")
		return
	}

	clientID, err := primitive.ObjectIDFromHex(c.Param("clientId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid client ID format")
		return
	}

	var req AssignFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	formID, err := primitive.ObjectIDFromHex(req.FormID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid form ID format")
		return
	}

	startDate, err := parseInstant(req.StartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "startDate must be RFC 3339 or YYYY-MM-DD")
		return
	}

	assignment, err := h.coachService.AssignForm(c.Request.Context(), coachID, clientID, formID, req.TotalWeeks, startDate, req.Window)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotManaged), errors.Is(err, service.ErrFormAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrClientNotFound), errors.Is(err, service.ErrFormNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAssignmentExists):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrInvalidConfiguration):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to assign form")
		}
		return
	}

	c.JSON(http.StatusCreated, AssignmentDetail{
		ID:            assignment.ID.Hex(),
		ClientID:      assignment.ClientID.Hex(),
		FormID:        assignment.FormID.Hex(),
		DueDate:       assignment.DueDate,
		CheckInWindow: assignment.CheckInWindow,
		Status:        assignment.Status,
		RecurringWeek: assignment.RecurringWeek,
		TotalWeeks:    assignment.TotalWeeks,
	})
}
