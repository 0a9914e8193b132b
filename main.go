// Package main provides the main entry point for the Hermes ad publishing orchestrator
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openpromo/hermes/app/handlers"
	"github.com/openpromo/hermes/app/router"
	"github.com/openpromo/hermes/app/scheduler"
	"github.com/openpromo/hermes/app/services"
	businessflow "github.com/openpromo/hermes/business_flow"
	"github.com/openpromo/hermes/config"
	"github.com/openpromo/hermes/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	log.Println("Starting Hermes publisher...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	if err := app.router.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// buildPublisherRegistry wires the platform adapters into the dispatch registry
func buildPublisherRegistry(cfg *config.ProductionConfig) *services.PublisherRegistry {
	registry := services.NewPublisherRegistry()
	registry.Register(services.NewMetaClient(cfg.Meta.BaseURL, cfg.Meta.APIVersion, cfg.Meta.Timeout))
	registry.Register(services.NewLinkedInClient(cfg.LinkedIn.BaseURL, cfg.LinkedIn.Timeout))
	registry.Register(services.NewGoogleAdsClient(cfg.GoogleAds.BaseURL, cfg.GoogleAds.DeveloperToken, cfg.GoogleAds.Timeout))
	return registry
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	credentialKey, err := cfg.Security.CredentialKeyBytes()
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	adRepo := repository.NewAdRepository(db)
	connRepo := repository.NewPlatformConnectionRepository(db)
	runRepo := repository.NewPublishRunRepository(db)
	clusterRepo := repository.NewClusterProfileRepository(db)

	// Load the cluster profile table once at startup; the table is reference
	// data and is only reloaded on restart.
	clusters := scheduler.NewClusterTable(clusterRepo)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := clusters.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load cluster profiles: %w", err)
	}
	log.Printf("Loaded %d cluster profiles", clusters.Len())

	// Initialize services
	segClient := services.NewSegmentationClient(cfg.Segmentation.BaseURL, cfg.Segmentation.APIKey, cfg.Segmentation.Timeout, rc, cfg.Segmentation.CacheTTL)
	registry := buildPublisherRegistry(cfg)

	// Initialize scheduler
	sched := scheduler.NewPublishScheduler(adRepo, connRepo, runRepo, segClient, registry, clusters, cfg.Scheduler, credentialKey)
	if cfg.Scheduler.Enabled {
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}
	stopFuncs = append(stopFuncs, func() { _ = sched.Close() })

	// Initialize flows and handlers
	reportFlow := businessflow.NewRunReportFlow(runRepo)
	runHandler := handlers.NewRunHandler(reportFlow, sched)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, runHandler)

	application := &Application{
		router:    appRouter,
		config:    cfg,
		stopFuncs: stopFuncs,
	}

	return application, nil
}
