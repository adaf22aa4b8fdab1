package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/qpstream/internal/log"
	"github.com/chrissnell/qpstream/internal/server"
	"github.com/chrissnell/qpstream/internal/storage"
	"github.com/chrissnell/qpstream/pkg/config"
)

// App represents the long-running HTTP service
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	// Run storage is optional; without it the /api/v1/runs endpoints are disabled
	health := storage.NewHealthManager()
	var store storage.RunStore
	if cfg.Storage.SQLitePath != "" {
		s, err := storage.NewSQLiteStore(ctx, cfg.Storage.SQLitePath, health)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	} else {
		a.logger.Info("storage.sqlite_path not provided; run storage disabled")
	}

	ctrl, err := server.NewController(ctx, &wg, cfg, store, health, a.logger)
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
