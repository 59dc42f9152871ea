package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-hub/src/config"
	"signal-hub/src/grpc_control"
	"signal-hub/src/helpers"
	"signal-hub/src/ingest"
	"signal-hub/src/interfaces"
	"signal-hub/src/logger"
	"signal-hub/src/network"
	"signal-hub/src/server"
	"signal-hub/src/storage"
	"signal-hub/src/utils"

	"github.com/joho/godotenv"
)

// database is what both storage backends provide.
type database interface {
	interfaces.IDatabase
	interfaces.ISubscriptionStore
}

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	writeConfig := flag.String("write-config", "", "write the effective config to this path and exit")
	flag.Parse()

	// Environment first, so overrides in .env apply to the YAML config
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Error loading %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	// 1. Storage
	var db database
	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger.Named("postgres"))
	default:
		db, err = storage.NewSQLiteDB(cfg.MConfig, appLogger.Named("sqlite"))
	}
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	var subscriptions interfaces.ISubscriptionStore = storage.NewMemorySubscriptionStore()
	if cfg.Hub.SubscriptionStore == "database" {
		subscriptions = db
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Realtime hub
	hub := server.NewHub(cfg.MConfig, appLogger.Named("hub"), subscriptions)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	// 3. Ingestion, pushing to a remote hub when one is configured
	var notifier interfaces.INotifier = hub
	if cfg.Hub.PushURL != "" {
		appLogger.Info("Pushing updates to %s", cfg.Hub.PushURL)
		notifier = network.NewHTTPNotifier(cfg.MConfig, appLogger.Named("push"))
	}
	scheduler := utils.NewMarketScheduler(cfg.Ingest.CalendarMIC, appLogger.Named("calendar"))
	ingestor := ingest.NewService(cfg.MConfig, appLogger.Named("ingest"), db, notifier, scheduler)

	// 4. HTTP server
	srv := server.NewHubServer(cfg.MConfig, appLogger.Named("http"), hub, ingestor, db)
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	cleanupErrors := helpers.NewErrorHandler(appLogger.Named("cleanup"))

	// 5. gRPC health
	var healthSvc *grpc_control.HealthService
	if cfg.GrpcPort != 0 {
		healthSvc = grpc_control.NewHealthService(cfg.MConfig, appLogger.Named("grpc"), hub, db)
		healthSvc.Track(ingestor.Failures(), cleanupErrors)
		go healthSvc.Watch(ctx, 10*time.Second)
		go func() {
			if err := healthSvc.Start(); err != nil {
				appLogger.Error("gRPC server failed: %v", err)
			}
		}()
	}

	// 6. Retention cleanup
	go runCleanup(ctx, db, time.Duration(cfg.Storage.CleanupIntervalMinutes)*time.Minute, cleanupErrors)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	if healthSvc != nil {
		healthSvc.Stop()
	}
	cancel()
	<-hubDone
}

// -----------------------------------------------------------------------------

func runCleanup(ctx context.Context, db interfaces.IDatabase, interval time.Duration, errHandler *helpers.ErrorHandler) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := errHandler.ExecuteWithRetry("database cleanup", db.CleanupOldData, 2)
			if err == nil {
				errHandler.ResetErrorCount()
				continue
			}
			errHandler.Handle(err, "retention cleanup")
		}
	}
}
