package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowsync/internal/config"
	httpdelivery "flowsync/internal/delivery/http"
	"flowsync/internal/delivery/sse"
	"flowsync/internal/delivery/ws"
	"flowsync/internal/replica"
	"flowsync/internal/repository"
	"flowsync/internal/usecase"
	"flowsync/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flowsync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	// Create context that is canceled on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewSnapshotRepository(ctx, cfg, logger.Named("repository"))
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer repo.Close()

	var opts []replica.Option
	if cfg.StartDisconnected {
		opts = append(opts, replica.WithDisconnected())
	}
	demoUC, err := usecase.NewDemoUseCase(ctx, repo, logger.Named("demo"), opts...)
	if err != nil {
		return err
	}
	defer demoUC.Close()

	sseRouter := sse.NewRouter(demoUC, logger.Named("sse"))
	defer sseRouter.Close()
	hub := ws.NewHub(demoUC, logger.Named("ws"))
	defer hub.Close()

	handler := httpdelivery.NewHandler(demoUC, logger.Named("http"))
	router := httpdelivery.NewRouter(handler, sseRouter, hub, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.StoreType),
			zap.Bool("connected", demoUC.Connected()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// End the long-lived streams first
	sseRouter.Close()
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
