// Package main provides the entry point of the outreach autopilot service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/outreach-autopilot/app/handlers"
	"github.com/amirphl/outreach-autopilot/app/router"
	"github.com/amirphl/outreach-autopilot/app/scheduler"
	"github.com/amirphl/outreach-autopilot/app/services"
	businessflow "github.com/amirphl/outreach-autopilot/business_flow"
	"github.com/amirphl/outreach-autopilot/config"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting outreach autopilot...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
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

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

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
	opt.DB = cfg.RedisDB
	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeCollaborators picks the HTTP client or the in-process mock for each collaborator
func initializeCollaborators(cfg *config.ProductionConfig) (services.RecipientRanker, services.ContentGenerator, services.DeliveryTransport) {
	var ranker services.RecipientRanker
	switch cfg.Ranker.Provider {
	case "mock":
		ranker = services.NewMockRecipientRanker()
	default:
		ranker = services.NewRecipientRanker(cfg.Ranker)
	}

	var generator services.ContentGenerator
	switch cfg.ContentGen.Provider {
	case "mock":
		generator = services.NewMockContentGenerator()
	default:
		generator = services.NewContentGenerator(cfg.ContentGen)
	}

	var transport services.DeliveryTransport
	switch cfg.Delivery.Provider {
	case "mock":
		transport = services.NewMockDeliveryTransport()
	default:
		transport = services.NewDeliveryTransport(cfg.Delivery)
	}

	log.Printf("Collaborators: ranker=%s content_gen=%s delivery=%s",
		cfg.Ranker.Provider, cfg.ContentGen.Provider, cfg.Delivery.Provider)
	return ranker, generator, transport
}

// initializeApplication wires repositories, flows, the scheduler and the HTTP layer
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	var stopFuncs []func()
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	identityRepo := repository.NewSendingIdentityRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	stepRepo := repository.NewSequenceStepRepository(db)
	progressRepo := repository.NewSequenceProgressRepository(db)
	messageRepo := repository.NewOutboundMessageRepository(db)
	abTestRepo := repository.NewABTestRepository(db)
	runJobRepo := repository.NewRunJobRepository(db)
	runEventRepo := repository.NewRunEventRepository(db)
	suppressionRepo := repository.NewSuppressionRepository(db)
	txManager := repository.NewTxManager(db)

	// Services
	ranker, generator, transport := initializeCollaborators(cfg)
	unsubscribes := services.NewUnsubscribeChecker(suppressionRepo, rc, cfg.Cache.RedisPrefix, cfg.Cache.DefaultTTL)

	autopilotLogger := scheduler.NewLogger("[autopilot] ", cfg.Autopilot.LogFilePath, cfg.Logging)

	// Business flows
	abTestFlow := businessflow.NewABTestFlow(abTestRepo)
	sequenceFlow := businessflow.NewSequenceFlow(stepRepo, progressRepo, recipientRepo, messageRepo, abTestFlow, unsubscribes, txManager)
	identityAllocator := businessflow.NewIdentityAllocator(identityRepo)
	runReporter := businessflow.NewRunReporter(runJobRepo, runEventRepo, autopilotLogger)
	runReportFlow := businessflow.NewRunReportFlow(runJobRepo, runEventRepo)
	engagementFlow := businessflow.NewEngagementFlow(messageRepo, recipientRepo, progressRepo, suppressionRepo, abTestFlow, unsubscribes, txManager)

	var locker scheduler.RunLocker
	if rc != nil {
		locker = scheduler.NewRedisRunLocker(rc, cfg.Cache.RedisPrefix, cfg.Autopilot.LockTTL)
	} else {
		locker = scheduler.NewLocalRunLocker()
	}

	autopilot := scheduler.NewAutopilotScheduler(
		campaignRepo,
		recipientRepo,
		messageRepo,
		txManager,
		sequenceFlow,
		identityAllocator,
		runReporter,
		ranker,
		generator,
		transport,
		unsubscribes,
		locker,
		cfg.Autopilot,
		autopilotLogger,
	)

	if cfg.Autopilot.Enabled {
		stopFuncs = append(stopFuncs, autopilot.Start(context.Background()))
		log.Printf("Autopilot scheduler started (interval=%s)", cfg.Autopilot.Interval)
	}

	// Handlers
	autopilotHandler := handlers.NewAutopilotHandler(autopilot, runReportFlow, cfg.Autopilot.RunTimeout)
	engagementHandler := handlers.NewEngagementHandler(engagementFlow)

	appRouter := router.NewFiberRouter(cfg, autopilotHandler, engagementHandler)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	if rc != nil {
		application.stopFuncs = append(application.stopFuncs, func() { _ = rc.Close() })
	}

	return application, nil
}
