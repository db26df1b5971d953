package api

import (
	"coachkit/checkin-app/internal/domain"
	"coachkit/checkin-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	coachService service.CoachService,
	checkInService service.CheckInService,
	reminderService service.ReminderService,
) {

	authHandler := NewAuthHandler(authService)
	coachHandler := NewCoachHandler(coachService)
	checkInHandler := NewCheckInHandler(checkInService)
	adminHandler := NewAdminHandler(reminderService, checkInService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Check-In Routes (clients) ---
		checkInGroup := protected.Group("/checkins")
		checkInGroup.Use(RoleMiddleware(domain.RoleClient))
		{
			// POST /api/v1/checkins/resolve
			checkInGroup.POST("/resolve", checkInHandler.ResolveCheckIn)
			// POST /api/v1/checkins/{assignmentId}/response
			checkInGroup.POST("/:assignmentId/response", checkInHandler.SubmitResponse)
			// GET /api/v1/checkins/{assignmentId}/window
			checkInGroup.GET("/:assignmentId/window", checkInHandler.WindowStatus)
		}

		// --- Coach Routes ---
		coachGroup := protected.Group("/coach")
		coachGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			// POST /api/v1/coach/clients
			coachGroup.POST("/clients", coachHandler.AddClientByEmail)
			// GET /api/v1/coach/clients
			coachGroup.GET("/clients", coachHandler.GetManagedClients)

			// POST /api/v1/coach/forms
			coachGroup.POST("/forms", coachHandler.CreateForm)
			// GET /api/v1/coach/forms
			coachGroup.GET("/forms", coachHandler.GetForms)

			// POST /api/v1/coach/clients/{clientId}/assignments
			coachGroup.POST("/clients/:clientId/assignments", coachHandler.AssignForm)
		}

		// --- Admin / Ops Routes ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			// POST /api/v1/admin/reminders/hourly
			adminGroup.POST("/reminders/hourly", adminHandler.RunHourlyReminders)
			// POST /api/v1/admin/reminders/overdue
			adminGroup.POST("/reminders/overdue", adminHandler.RunOverdueReminders)
			// POST /api/v1/admin/backfill
			adminGroup.POST("/backfill", adminHandler.RunBackfill)
		}
	}
}
