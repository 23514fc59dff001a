package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/churchpay-reconciliation/internal/api"
	"github.com/churchpay-reconciliation/internal/config"
	mongodata "github.com/churchpay-reconciliation/internal/data/mongo"
	"github.com/churchpay-reconciliation/internal/data/postgres"
	"github.com/churchpay-reconciliation/internal/domain/church"
	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/logger"
	"github.com/churchpay-reconciliation/internal/platform/cache"
	"github.com/churchpay-reconciliation/internal/platform/messaging/producers"
	"github.com/churchpay-reconciliation/internal/platform/persistence"
	"github.com/churchpay-reconciliation/internal/platform/processor"
	"github.com/churchpay-reconciliation/internal/reconciliation"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for reconciliation events
	eventProducer, err := producers.NewReconciliationEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize reconciliation event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	churchCache := cache.New[*church.Church](cfg.Reconciliation.CacheCapacity, cfg.Reconciliation.StatsTTL)
	churchRepo := postgres.NewCachedChurchRepository(postgres.NewChurchRepository(log, postgresDB), churchCache)
	payoutRepo := postgres.NewPayoutRepository(log, postgresDB)
	donationRepo := postgres.NewDonationRepository(log, postgresDB)
	runRepo := mongodata.NewRunArchiveRepository(log, mongoDB.Database())

	// Initialize processor client and services
	stripeClient := processor.NewStripeClient(log, &cfg.Processor)

	engine, err := reconciliation.NewEngine(
		log,
		churchRepo,
		payoutRepo,
		donationRepo,
		stripeClient,
		runRepo,
		eventProducer,
		cfg.Reconciliation.AmountTolerance,
		cfg.WorkerPool.Size,
	)
	if err != nil {
		log.Error("Failed to initialize reconciliation engine", "error", err)
		os.Exit(1)
	}

	importer := reconciliation.NewImporter(log, churchRepo, payoutRepo, stripeClient)

	statsCache := cache.New[*payout.StatusCounts](cfg.Reconciliation.CacheCapacity, cfg.Reconciliation.StatsTTL)
	stats := reconciliation.NewStatsService(log, payoutRepo, statsCache)

	// Initialize REST server
	server := api.NewServer(log, cfg, engine, importer, stats, runRepo)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	engine.Shutdown()

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing reconciliation event producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
