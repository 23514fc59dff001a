// Command reconcile_job imports and bulk-reconciles payouts for every
// connected church in one pass, then exits. Periodic scheduling is an
// external concern; run it from cron or a one-off operator invocation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/churchpay-reconciliation/internal/config"
	mongodata "github.com/churchpay-reconciliation/internal/data/mongo"
	"github.com/churchpay-reconciliation/internal/data/postgres"
	"github.com/churchpay-reconciliation/internal/logger"
	"github.com/churchpay-reconciliation/internal/platform/messaging/producers"
	"github.com/churchpay-reconciliation/internal/platform/persistence"
	"github.com/churchpay-reconciliation/internal/platform/processor"
	"github.com/churchpay-reconciliation/internal/reconciliation"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("reconcile_job")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting payout sync job",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresDB.Close()

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoDB.Close(appCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}()

	eventProducer, err := producers.NewReconciliationEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize reconciliation event producer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eventProducer.Close(); err != nil {
			log.Error("Error closing reconciliation event producer", "error", err)
		}
	}()

	// The job walks every tenant once; no lookup cache needed here.
	churchRepo := postgres.NewChurchRepository(log, postgresDB)
	payoutRepo := postgres.NewPayoutRepository(log, postgresDB)
	donationRepo := postgres.NewDonationRepository(log, postgresDB)
	runRepo := mongodata.NewRunArchiveRepository(log, mongoDB.Database())

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
	defer engine.Shutdown()

	importer := reconciliation.NewImporter(log, churchRepo, payoutRepo, stripeClient)

	churches, err := churchRepo.ListConnected(appCtx)
	if err != nil {
		log.Error("Failed to list connected churches", "error", err)
		os.Exit(1)
	}

	var failures int
	for _, ch := range churches {
		churchLog := log.With("church_id", ch.ID.String(), "church", ch.Name)

		imported, err := importer.ImportHistorical(appCtx, ch.ID, cfg.Processor.MaxListPage)
		if err != nil {
			// Partial imports are kept; the next run picks up the rest.
			churchLog.Error("Import failed", "error", err)
			failures++
			continue
		}
		churchLog.Info("Import finished", "imported", imported.Imported, "skipped", imported.Skipped)

		result, err := engine.ReconcileAll(appCtx, ch.ID)
		if err != nil {
			churchLog.Error("Bulk reconciliation failed", "error", err)
			failures++
			continue
		}
		if result.Failed > 0 {
			failures++
		}
		churchLog.Info("Bulk reconciliation finished",
			"reconciled", result.Reconciled,
			"failed", result.Failed,
		)
	}

	log.Info("Payout sync job finished", "churches", len(churches), "churches_with_failures", failures)
	if failures > 0 {
		os.Exit(1)
	}
}
