package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/deadline-triage/internal/adapters/timer"
	"github.com/mikey/deadline-triage/internal/core"
	"github.com/mikey/deadline-triage/internal/di"
	"github.com/mikey/deadline-triage/internal/ports"
	"go.uber.org/zap"
)

// drainTimeout bounds how long shutdown waits for a reminder that is mid-delivery
const drainTimeout = 15 * time.Second

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	servers []ports.Server,
	reminders *timer.CronTimer,
	repo core.ClassifierRepository,
) error {
	defer logger.Sync()

	// Reminders scheduled by the first request need a running timer
	reminders.Start()

	for _, srv := range servers {
		if err := srv.Start(); err != nil {
			logger.Error("Failed to start server", zap.Error(err))
			stopAll(logger, servers, reminders, repo)
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	stopAll(logger, servers, reminders, repo)

	logger.Info("Shutdown complete", zap.Int("unsent_reminders", reminders.Pending()))
	return nil
}

func stopAll(logger *zap.Logger, servers []ports.Server, reminders *timer.CronTimer, repo core.ClassifierRepository) {
	for _, srv := range servers {
		if err := srv.Stop(); err != nil {
			logger.Error("Failed to stop server", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := reminders.Stop(ctx); err != nil {
		logger.Warn("Reminder timer did not drain", zap.Error(err))
	}

	if err := repo.Close(); err != nil {
		logger.Error("Failed to close classifier store", zap.Error(err))
	}
}
