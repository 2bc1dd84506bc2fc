// Package main provides the API server entry point for the token gate service.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/token-gate/internal/api"
	"github.com/token-gate/internal/config"
	"github.com/token-gate/internal/gate"
	"github.com/token-gate/internal/logging"
	"github.com/token-gate/internal/oracle"
	"github.com/token-gate/internal/registry"
	"github.com/token-gate/internal/service"
	"github.com/token-gate/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// The admin gate is the only path to privileged operations, so a
	// missing token is a startup failure, not a degraded mode.
	adminGate, err := gate.NewAdminGate(cfg.Admin.Token)
	if err != nil {
		logger.WithError(err).Fatal("Admin gate initialization failed")
	}

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Repositories
	accountRepo := storage.NewAccountRepository(postgres)
	configRepo := storage.NewConfigRepository(postgres)
	poolRepo := storage.NewPoolRepository(postgres)
	eventRepo := storage.NewEventRepository(clickhouse)

	// Core services
	logger.Info("Initializing services...")

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accountRegistry := registry.NewRegistry(accountRepo)

	configStore, err := service.NewConfigStore(startupCtx, configRepo, cfg.Defaults)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize config store")
	}

	membershipService := service.NewMembershipService(accountRegistry)

	stakingLedger, err := service.NewStakingLedger(
		startupCtx,
		accountRegistry,
		poolRepo,
		eventRepo,
		logger,
		cfg.Defaults.APYBasisPoints,
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize staking ledger")
	}

	// Balance oracle with Redis cache in front
	chainOracle, err := oracle.NewChainOracle(cfg.Chain, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize balance oracle")
	}
	balances := oracle.NewCachedOracle(chainOracle, redis, cfg.Oracle.CacheTTL, logger)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestsPerSec:  cfg.RateLimit.RequestsPerSecond,
		Burst:           cfg.RateLimit.Burst,
	}

	server := api.NewServer(
		serverConfig,
		membershipService,
		stakingLedger,
		configStore,
		eventRepo,
		balances,
		adminGate,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
