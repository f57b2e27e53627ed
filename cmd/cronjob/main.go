package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"melange-connection-backend/internal/config"
	"melange-connection-backend/internal/jobs"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository/postgres"
	"melange-connection-backend/internal/scheduler"
	"melange-connection-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'dispatch-notifications', 'expire-anonymous-connections', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Melange Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db, cfg.Database.TxMaxAttempts)

	// Initialize Services
	var emailSender service.EmailSender
	if cfg.Email.Provider == "sendgrid" {
		emailSender = service.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromEmail, cfg.Email.FromName)
	} else {
		emailSender = service.NewLogSender()
	}
	notifier := service.NewOutboxNotifier(cfg.Program.Name, cfg.Email.BaseURL, cfg.Program.MentorWelcomeMessage)
	anonymousSvc := service.NewAnonymousConnectionService(store, store.Repos(), notifier, cfg.AnonymousInviteTTL())

	jobServices := &jobs.Services{
		Email:     emailSender,
		Anonymous: anonymousSvc,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "dispatch-notifications":
		jobRunner.DispatchNotifications()
	case "expire-anonymous-connections":
		jobRunner.ExpireAnonymousConnections()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - dispatch-notifications\n")
		fmt.Printf("  - expire-anonymous-connections\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
