package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	grpcapi "melange-connection-backend/internal/api/grpc"
	httpapi "melange-connection-backend/internal/api/http"
	"melange-connection-backend/internal/config"
	"melange-connection-backend/internal/jobs"
	"melange-connection-backend/internal/logger"
	"melange-connection-backend/internal/repository/postgres"
	"melange-connection-backend/internal/scheduler"
	"melange-connection-backend/internal/security"
	"melange-connection-backend/internal/service"
	"melange-connection-backend/internal/telemetry"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Melange Connection Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "grpc_address", cfg.GetGRPCAddress(), "metrics_address", cfg.GetMetricsAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Email configuration", "provider", cfg.Email.Provider, "from", cfg.Email.FromEmail)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(db, "up"); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Repositories
	store := postgres.NewStore(db, cfg.Database.TxMaxAttempts)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// Initialize Services
	var emailSender service.EmailSender
	if cfg.Email.Provider == "sendgrid" {
		emailSender = service.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromEmail, cfg.Email.FromName)
	} else {
		logger.Info("Using log email sender; notifications will not leave this process")
		emailSender = service.NewLogSender()
	}

	policy := service.RetainRolesOnRegression
	if cfg.Connections.DemoteOnRegression {
		policy = service.DemoteOnRegression
	}
	notifier := service.NewOutboxNotifier(cfg.Program.Name, cfg.Email.BaseURL, cfg.Program.MentorWelcomeMessage)
	connectionSvc := service.NewConnectionService(
		store,
		store.Repos(),
		service.NewProgramEligibilityChecker(),
		notifier,
		service.ConnectionServiceOptions{
			Policy:           policy,
			MessageMaxLength: cfg.Connections.MessageMaxLength,
			MessageListLimit: int32(cfg.Connections.MessageListLimit),
		},
	)
	anonymousSvc := service.NewAnonymousConnectionService(store, store.Repos(), notifier, cfg.AnonymousInviteTTL())
	accessSvc := service.NewAccessService(store.Repos().Profiles)

	// Set up HTTP API
	handler := httpapi.NewConnectionHandler(connectionSvc, anonymousSvc, accessSvc, cfg.Connections.MessageMaxLength)
	router := httpapi.NewRouter(handler, httpapi.NewAuthMiddleware(tokenManager))
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up gRPC health server
	var grpcServer *grpcapi.Server
	if addr := cfg.GetGRPCAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", addr)
			log.Fatalf("Failed to listen: %v", err)
		}
		grpcServer = grpcapi.NewServer(tokenManager, db)
		go grpcServer.WatchDatabase(ctx, 15*time.Second)
		go func() {
			logger.Info("gRPC health server listening", "address", addr)
			if err := grpcServer.GRPC().Serve(lis); err != nil {
				logger.Error("Failed to serve gRPC", "error", err)
			}
		}()
	}

	// Set up Prometheus listener
	var metricsServer *http.Server
	if addr := cfg.GetMetricsAddress(); addr != "" {
		metricsServer = &http.Server{Addr: addr, Handler: telemetry.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("Metrics server listening", "address", addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Optionally run the cron jobs in process
	var cronScheduler *scheduler.Scheduler
	if cfg.Server.RunScheduler {
		jobRunner := jobs.NewJobRunner(store, &jobs.Services{Email: emailSender, Anonymous: anonymousSvc}, cfg)
		cronScheduler = scheduler.NewScheduler(jobRunner)
		cronScheduler.Start()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down...")
	cancel()
	if cronScheduler != nil {
		cronScheduler.Stop()
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
