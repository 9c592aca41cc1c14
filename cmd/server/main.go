package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/configs"
	"github.com/klong-dev/swd-stockintel-sub000/internal/application/services"
	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
	"github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/db"
	"github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/health"
	"github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/httpserver"
	infraRedis "github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/redis"
	"github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/repositories"
	"github.com/klong-dev/swd-stockintel-sub000/internal/infrastructure/storage"
)

func main() {
	// Load configuration
	cfg, err := configs.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.Info("Starting content ingestion service...")

	// Initialize database (apply pool settings from config)
	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	logger.Info("Connected to database successfully")

	// Initialize Redis client
	redisClient, err := infraRedis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	logger.Info("Connected to Redis successfully")

	// Run migrations
	if err := database.Migrate("./migrations"); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// External object store
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		logger.Fatal("Failed to load AWS configuration:", err)
	}
	objectStore := storage.NewS3Store(awsCfg, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL, logger)

	// Repository implementations
	clientRepo := repositories.NewClientRepository(database, logger)
	assetRepo := repositories.NewAssetRepository(database, logger)
	rateLimitRepo := repositories.NewRateLimitRedisRepository(redisClient)

	redisCache := infraRedis.NewRedisCache(redisClient, "appcache")

	// Wire services
	credentialService := services.NewCredentialService(clientRepo, redisCache, &services.CredentialCacheConfig{
		TTL:       cfg.Creds.TTL,
		KeyPrefix: cfg.Creds.KeyPrefix,
	}, logger)

	rateLimiterService := services.NewRateLimiterService(rateLimitRepo, &services.RateLimiterConfig{
		Window:    cfg.RateLimit.Window,
		KeyPrefix: cfg.RateLimit.KeyPrefix,
	}, logger)

	quotaService := services.NewQuotaService(clientRepo, &services.QuotaConfig{
		UnitBytes:     cfg.Quota.UnitBytes,
		StrictRelease: cfg.Quota.StrictRelease,
	}, logger)

	admissionService := services.NewAdmissionService(credentialService, rateLimiterService, clientRepo, logger)
	ingestionService := services.NewIngestionService(admissionService, quotaService, assetRepo, objectStore, cfg.Storage.KeyPrefix, logger)
	clientService := services.NewClientService(clientRepo, credentialService, logger)

	hcSlice := []ports.HealthChecker{health.NewDBHealthChecker(database), health.NewRedisHealthChecker(redisClient)}

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	deps := httpserver.ServerDeps{
		IngestionService: ingestionService,
		ClientService:    clientService,
		Credentials:      credentialService,
		HealthCheckers:   hcSlice,
	}

	server := httpserver.NewServer(serverConfig, cfg.Admin.Token, logger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
