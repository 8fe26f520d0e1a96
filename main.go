// Package main provides the main entry point for the Healthiphi Founder Pass service
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/healthiphi/founder-pass/app/handlers"
	"github.com/healthiphi/founder-pass/app/middleware"
	"github.com/healthiphi/founder-pass/app/router"
	"github.com/healthiphi/founder-pass/app/scheduler"
	"github.com/healthiphi/founder-pass/app/services"
	businessflow "github.com/healthiphi/founder-pass/business_flow"
	"github.com/healthiphi/founder-pass/config"
	"github.com/healthiphi/founder-pass/migrations"
	"github.com/healthiphi/founder-pass/repository"
	_ "github.com/lib/pq" // PostgreSQL driver for database/sql migrations
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Healthiphi Founder Pass service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closeLog := initializeLogging(cfg.Logging)
	defer closeLog()

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatalf("%s failed: %v", os.Args[1], err)
		}
		return
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
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Graceful shutdown: stop accepting requests before background workers go away
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Server stopped")
}

// runCommand executes a one-shot maintenance command instead of serving HTTP
func runCommand(cfg *config.ProductionConfig, args []string) error {
	switch args[0] {
	case "migrate":
		db, err := sql.Open("postgres", databaseDSN(cfg.Database))
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		n, err := migrations.Apply(ctx, db)
		if err != nil {
			return err
		}
		log.Printf("Applied %d migrations", n)
		return nil

	case "admin-token":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin-token <subject>")
		}
		tokenService, err := initializeTokenService(cfg.JWT)
		if err != nil {
			return err
		}
		token, err := tokenService.GenerateAdminToken(args[1])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil

	default:
		return fmt.Errorf("unknown command %q (expected migrate or admin-token)", args[0])
	}
}

// initializeLogging routes the standard logger to stdout, a rotating file, or both
func initializeLogging(cfg config.LoggingConfig) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	if cfg.Output == "stdout" || cfg.FilePath == "" {
		log.SetOutput(os.Stdout)
		return func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var out io.Writer = rotator
	if cfg.Output == "both" {
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log.SetOutput(out)

	return func() {
		if err := rotator.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}
}

func databaseDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

// gormLogLevel maps LOG_LEVEL onto GORM's levels. Slow queries are warnings,
// so anything below error keeps them visible.
func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = logger.New(log.Default(), logger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(databaseDSN(cfg)), gormCfg)
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

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, password string) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB
	if opt.Password == "" {
		opt.Password = password
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

// initializeNotificationService initializes the notification service
func initializeNotificationService(cfg config.EmailConfig) services.NotificationService {
	var emailProvider services.EmailProvider

	switch cfg.Provider {
	case "mock":
		emailProvider = services.NewMockEmailProvider()
	default:
		emailProvider = services.NewSMTPEmailProvider(
			cfg.Host,
			cfg.Port,
			cfg.Username,
			cfg.Password,
			cfg.FromEmail,
			cfg.FromName,
			cfg.UseTLS,
			cfg.UseSTARTTLS,
			cfg.Timeout,
		)
	}

	return services.NewNotificationService(emailProvider)
}

func initializeVaultProvider(cfg config.StripeConfig) (services.VaultProvider, error) {
	switch cfg.Provider {
	case "mock":
		log.Println("Using mock vault provider; no card data reaches a processor")
		return services.NewMockVaultProvider(), nil
	default:
		return services.NewStripeVaultProvider(cfg.SecretKey, cfg.Timeout)
	}
}

func initializeTokenService(cfg config.JWTConfig) (services.TokenService, error) {
	return services.NewTokenService(
		cfg.AccessTokenTTL,
		cfg.Issuer,
		cfg.Audience,
		cfg.UseRSAKeys,
		cfg.PrivateKey,
		cfg.PublicKey,
		cfg.SecretKey,
	)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	healthChecks := map[string]router.HealthCheck{
		"database": sqlDB.PingContext,
	}

	rc, err := initializeCache(cfg.Cache, cfg.Deployment.RedisPassword)
	if err != nil {
		return nil, err
	}

	var vaultCache businessflow.VaultStatusCache
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		healthChecks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
		vaultCache = businessflow.NewRedisVaultStatusCache(rc, cfg.Cache)
	}

	// Initialize repositories
	pledgeRepo := repository.NewPledgeRepository(db)
	vaultRepo := repository.NewVaultStatusRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	var txRunner repository.TxRunner
	if cfg.Pledge.SingleTransaction {
		txRunner = repository.NewGormTxRunner(db)
	} else {
		log.Println("Pledge writes run without a shared transaction; compensation handles partial failures")
		txRunner = repository.NewSequentialRunner()
	}

	// Initialize services
	notificationService := initializeNotificationService(cfg.Email)
	pledgeNotifier := businessflow.NewEmailPledgeNotifier(notificationService, cfg.Pledge.SiteURL, cfg.Pledge.SeatGoal)

	vaultProvider, err := initializeVaultProvider(cfg.Stripe)
	if err != nil {
		return nil, err
	}

	tokenService, err := initializeTokenService(cfg.JWT)
	if err != nil {
		return nil, err
	}

	// Initialize business flows
	pledgeFlow := businessflow.NewPledgeFlow(
		pledgeRepo,
		vaultRepo,
		auditRepo,
		txRunner,
		vaultProvider,
		pledgeNotifier,
		vaultCache,
		cfg.Pledge,
		cfg.Security.BcryptCost,
	)
	vaultFlow := businessflow.NewVaultFlow(pledgeRepo, vaultRepo, auditRepo, txRunner, vaultCache, cfg.Pledge.SeatGoal)
	adminFlow := businessflow.NewAdminPledgeFlow(pledgeRepo, vaultFlow)

	// Initialize handlers
	pledgeHandler := handlers.NewPledgeHandler(pledgeFlow)
	vaultHandler := handlers.NewVaultHandler(vaultFlow)
	adminHandler := handlers.NewAdminHandler(adminFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	r := router.NewFiberRouter(cfg, pledgeHandler, vaultHandler, adminHandler, authMiddleware, healthChecks)

	if cfg.Scheduler.VaultReconcileEnabled {
		reconciler := scheduler.NewVaultReconciler(vaultFlow, cfg.Scheduler.VaultReconcileInterval, cfg.Scheduler.VaultReconcileRepair, nil)
		stopFuncs = append(stopFuncs, reconciler.Start(context.Background()))
		log.Printf("Vault reconciler started (interval=%s, repair=%t)", cfg.Scheduler.VaultReconcileInterval, cfg.Scheduler.VaultReconcileRepair)
	}

	// Threshold emails still read pledges, so they drain before the pool closes
	if w, ok := pledgeFlow.(interface{ Wait() }); ok {
		stopFuncs = append(stopFuncs, w.Wait)
	}
	stopFuncs = append(stopFuncs, func() { _ = sqlDB.Close() })

	return &Application{
		router:    r,
		config:    cfg,
		server:    r.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
