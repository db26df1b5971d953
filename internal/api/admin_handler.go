package api

import (
	"coachkit/checkin-app/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the ops endpoints: manual reminder runs and series
// backfill. The scheduler invokes the same services on a timer; these routes
// exist for incident response and for verifying a deploy.
type AdminHandler struct {
	reminderService service.ReminderService
	checkInService  service.CheckInService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reminderService service.ReminderService, checkInService service.CheckInService) *AdminHandler {
	return &AdminHandler{
		reminderService: reminderService,
		checkInService:  checkInService,
	}
}

// RunHourlyReminders godoc
// @Summary Trigger the hourly reminder scan
// @Description Runs the window-open, 24h-due and window-closed dispatch pass
// @Description immediately. Safe to invoke alongside the scheduled run; the
// @Description send markers prevent duplicate emails.
// @Tags Admin
// @Produce json
// @Success 200 {object} service.ScanReport "Scan report"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /admin/reminders/hourly [post]
func (h *AdminHandler) RunHourlyReminders(c *gin.Context) {
	report, err := h.reminderService.RunHourlyScan(c.Request.Context(), time.Now())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Reminder scan failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

// RunOverdueReminders godoc
// @Summary Trigger the daily overdue reminder scan
// @Description Runs the overdue dispatch pass immediately. Outside the
// @Description configured send hour this is a no-op.
// @Tags Admin
// @Produce json
// @Success 200 {object} service.ScanReport "Scan report"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /admin/reminders/overdue [post]
func (h *AdminHandler) RunOverdueReminders(c *gin.Context) {
	report, err := h.reminderService.RunOverdueScan(c.Request.Context(), time.Now())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Overdue scan failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

// RunBackfill godoc
// @Summary Backfill missing weeks of all recurring series
// @Description Creates every missing week [2..totalWeeks] for each recurring
// @Description series. Idempotent; existing weeks are left untouched.
// @Tags Admin
// @Produce json
// @Success 200 {object} service.BackfillReport "Backfill report"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Security BearerAuth
// @Router /admin/backfill [post]
func (h *AdminHandler) RunBackfill(c *gin.Context) {
	report, err := h.checkInService.BackfillAll(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Backfill failed")
		return
	}
	c.JSON(http.StatusOK, report)
}
