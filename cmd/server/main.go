package main

import (
	"coachkit/checkin-app/internal/api"
	"coachkit/checkin-app/internal/config"
	"coachkit/checkin-app/internal/mailer"
	"coachkit/checkin-app/internal/repository/mongo"
	"coachkit/checkin-app/internal/schedule"
	"coachkit/checkin-app/internal/service"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title Check-In API
// @version 1.0
// @description API for coaches managing weekly client check-ins: forms, recurring assignments, windows and reminders.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Check-In App Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	loc, err := time.LoadLocation(cfg.CheckIn.Timezone)
	if err != nil {
		log.Fatalf("FATAL: Invalid checkin.timezone %q: %v", cfg.CheckIn.Timezone, err)
	}

	// Structured logger for the services; main sticks to the standard logger.
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("FATAL: Could not create logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureFormIndexes(ctx, appDB.Collection("checkin_forms"))
		mongo.EnsureAssignmentIndexes(ctx, appDB.Collection("assignments"))
		mongo.EnsureResponseIndexes(ctx, appDB.Collection("responses"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Mailer ---
	var sender mailer.Sender
	switch cfg.Mail.Provider {
	case "resend":
		if cfg.Mail.APIKey == "" {
			log.Fatalf("FATAL: mail.provider is resend but mail.api_key is empty")
		}
		sender = mailer.NewResendSender(cfg.Mail.APIKey, cfg.Mail.From)
		log.Println("Mailer: resend")
	default:
		sender = mailer.NewNoopSender(zapLogger)
		log.Println("Mailer: noop (emails are logged, not sent)")
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	formRepo := mongo.NewMongoFormRepository(appDB)
	assignmentRepo := mongo.NewMongoAssignmentRepository(appDB)
	responseRepo := mongo.NewMongoResponseRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	coachService := service.NewCoachService(userRepo, formRepo, assignmentRepo)
	checkInService := service.NewCheckInService(assignmentRepo, responseRepo, formRepo, loc, zapLogger)
	reminderService := service.NewReminderService(
		assignmentRepo, userRepo, formRepo, sender,
		loc, cfg.Mail.OverrideRecipient, cfg.Scheduler.OverdueHour, zapLogger,
	)

	// --- Scheduler ---
	var sched *schedule.Scheduler
	if cfg.Scheduler.Enabled {
		sched = schedule.New(loc)
		if _, err := sched.Hourly(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := reminderService.RunHourlyScan(ctx, time.Now()); err != nil {
				zapLogger.Error("hourly reminder scan failed", zap.Error(err))
			}
		}); err != nil {
			log.Fatalf("FATAL: Could not register hourly reminder job: %v", err)
		}
		if _, err := sched.DailyAtHour(cfg.Scheduler.OverdueHour, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := reminderService.RunOverdueScan(ctx, time.Now()); err != nil {
				zapLogger.Error("overdue reminder scan failed", zap.Error(err))
			}
		}); err != nil {
			log.Fatalf("FATAL: Could not register overdue reminder job: %v", err)
		}
		sched.Start()
		defer sched.Stop()
		log.Printf("Scheduler started (overdue hour %02d:00 %s)", cfg.Scheduler.OverdueHour, loc)
	} else {
		log.Println("Scheduler disabled; reminders only run via the admin endpoints.")
	}

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, coachService, checkInService, reminderService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
