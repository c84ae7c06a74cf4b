// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "label-service/docs"
	"label-service/internal/config"
	"label-service/internal/database"
	"label-service/internal/handler"
	"label-service/internal/repository"
	"label-service/internal/routes"
	"label-service/internal/service"
	"label-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	// Services
	printerService   *service.PrinterService
	jobService       *service.JobService
	discoveryService *service.DiscoveryService

	// Repositories
	jobRepo repository.JobRepository

	eventBus  *handler.EventBus
	wsHandler *handler.WebSocketHandler

	// cancel stops the background goroutines
	cancel context.CancelFunc
}

// @title Label Service API
// @version 1.0.0
// @description HTTP service for Niimbot thermal label printers

// @contact.name Label Service API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if *migrateOnly {
		app.shutdown()
		return
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "label-service")
	serviceLogger.LogServiceStart(cfg.App.Version, len(cfg.Printers))

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeDatabase connects to Postgres and runs migrations when enabled
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled, job history kept in memory",
			zap.Int("max_jobs", app.config.Jobs.MaxInMemory),
		)
		return nil
	}

	db, err := database.Connect(context.Background(), app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(app.config, app.logger)
	if err := migrator.Up(); err != nil {
		db.Close()
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.jobRepo = repository.NewJobRepository(app.database, app.logger)
	} else {
		app.jobRepo = repository.NewMemoryJobRepository(app.config.Jobs.MaxInMemory, app.logger)
	}

	app.logger.Info("Repositories initialized successfully")
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	app.eventBus = handler.NewEventBus(app.logger)

	printerService, err := service.NewPrinterService(
		app.config,
		app.jobRepo,
		app.eventBus,
		nil,
		app.logger,
	)
	if err != nil {
		return err
	}
	app.printerService = printerService

	app.jobService = service.NewJobService(app.jobRepo, &app.config.Jobs, app.logger)
	app.discoveryService = service.NewDiscoveryService(app.config, nil, app.logger)

	app.logger.Info("Services initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.printerService,
		app.jobService,
		app.discoveryService,
		app.eventBus,
	)
	app.wsHandler = routerManager.WebSocketHandler()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// startBackgroundServices starts the event bus, websocket fan-out and job cleanup
func (app *Application) startBackgroundServices() {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go app.eventBus.Start(ctx)
	go app.wsHandler.Run(ctx)
	go app.startCleanupService(ctx)

	app.logger.Info("Background services started")
}

// startCleanupService prunes finished jobs past the retention period
func (app *Application) startCleanupService(ctx context.Context) {
	if app.config.Jobs.Retention <= 0 {
		app.logger.Info("Job cleanup disabled")
		return
	}

	app.logger.Info("Cleanup service started",
		zap.Duration("retention", app.config.Jobs.Retention),
		zap.Duration("interval", app.config.Jobs.CleanupInterval),
	)

	deleted, err := app.jobService.Cleanup(ctx)
	if err != nil {
		app.logger.Error("Failed to cleanup old jobs", zap.Error(err))
	} else if deleted > 0 {
		app.logger.Info("Cleaned up old jobs", zap.Int64("deleted", deleted))
	}

	app.jobService.RunCleanup(ctx)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "label-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if app.cancel != nil {
		app.cancel()
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
