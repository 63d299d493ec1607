package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sahod/internal/amqp"
	"sahod/internal/auth"
	"sahod/internal/config"
	apphttp "sahod/internal/http"
	applog "sahod/internal/log"
	"sahod/internal/services"
	"sahod/internal/storage"
)

func main() {
	// Load .env for local development; missing file is fine in production.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := applog.Setup(ctx, applog.ComponentApp)

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

	// AMQP is optional: without a broker, execution still works and the
	// worker's sweep handles exports.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Tokens:       tokens,
		Auth:         services.NewAuthService(repo, tokens),
		Accounts:     services.NewAccountService(repo),
		Transactions: services.NewTransactionService(repo),
		Expenses:     services.NewExpenseService(repo),
		Cycles:       services.NewSalaryCycleService(repo, repo, amqpClient),
		Dashboard:    services.NewDashboardService(repo),
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting sahod server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
