// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/token-gate/internal/config"
	"github.com/token-gate/internal/logging"
	"github.com/token-gate/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	switch *dbType {
	case "postgres":
		if err := runPostgresMigrations(cfg, *action, logger); err != nil {
			logger.WithError(err).Fatal("Postgres migration failed")
		}
	case "clickhouse":
		if err := runClickHouseMigrations(cfg, *action, logger); err != nil {
			logger.WithError(err).Fatal("ClickHouse migration failed")
		}
	default:
		logger.WithField("db", *dbType).Fatal("Unknown database type")
	}
}

func runPostgresMigrations(cfg *config.Config, action string, logger *logging.Logger) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.Database,
	)

	migrationsPath := "migrations/postgres"

	switch action {
	case "up":
		if err := storage.RunMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		logger.Info("Postgres migrations completed")

	case "down":
		if err := storage.RollbackMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		logger.Info("Postgres migration rolled back")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		}).Info("Current Postgres migration version")

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func runClickHouseMigrations(cfg *config.Config, action string, logger *logging.Logger) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}

	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	migrationsPath := "migrations/clickhouse"
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found: %s", migrationsPath)
	}

	if err := storage.RunClickHouseMigrations(context.Background(), db, migrationsPath, logger); err != nil {
		return err
	}
	logger.Info("ClickHouse migrations completed")

	return nil
}
