package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"sahod/internal/amqp"
	"sahod/internal/config"
	"sahod/internal/export"
	gexport "sahod/internal/export/google"
	mexport "sahod/internal/export/memory"
	applog "sahod/internal/log"
	"sahod/internal/storage"
	"sahod/internal/worker"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := applog.Setup(ctx, applog.ComponentWorker)
	logger.Info("Starting sahod-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var exporter export.LedgerExporter
	switch cfg.ExportBackend {
	case "sheets":
		client, err := gexport.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Initialized Google Sheets export backend",
			"spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		exporter = mexport.New()
		logger.Info("Initialized in-memory export backend")
	}

	exportWorker := worker.NewExportWorker(repo, exporter, cfg.ExportBatchSize)

	// Catch up on anything missed while the worker was down.
	if err := exportWorker.SweepUnexported(ctx); err != nil {
		logger.Error("Startup sweep failed", "error", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		group.Go(func() error {
			return amqpClient.ConsumeCycleExecuted(ctx, func(msg *amqp.CycleExecutedMessage) error {
				return exportWorker.HandleCycleExecuted(ctx, msg)
			})
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic sweep only")
	}

	group.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := exportWorker.SweepUnexported(ctx); err != nil {
					logger.Error("Periodic sweep failed", "error", err)
				}
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
