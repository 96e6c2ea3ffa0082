package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contactdesk/internal/api"
	"contactdesk/internal/application/factories/infrastructure"
	"contactdesk/internal/config"
	"contactdesk/internal/infrastructure/postgres"
	"contactdesk/internal/usecase"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	// Redis is optional for the API: it backs the idempotency middleware
	// and the single-contact read cache.
	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Warn("redis unavailable, idempotency and read cache disabled", "error", err)
		redisClient = nil
	}

	// Repositories
	contactRepo := postgres.NewContactRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	// UseCases
	createContactUC := usecase.NewCreateContact(txManager, contactRepo, outboxRepo)
	getContactUC := usecase.NewGetContact(redisClient, contactRepo)
	listContactsUC := usecase.NewListContacts(contactRepo)
	updateContactUC := usecase.NewUpdateContact(txManager, contactRepo, outboxRepo)
	deleteContactUC := usecase.NewDeleteContact(txManager, contactRepo, outboxRepo)

	handlers := api.NewHandlers(createContactUC, getContactUC, listContactsUC, updateContactUC, deleteContactUC)
	apiHandler := api.NewRouter(handlers, redisClient)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: apiHandler,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exiting")
}
