// Package config provides configuration management for the token gate
// service. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Admin     AdminConfig
	Chain     ChainConfig
	Defaults  DefaultsConfig
	Oracle    OracleConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// AdminConfig holds the shared admin credential. Token must be non-empty
// for any admin-gated operation; startup fails without it.
type AdminConfig struct {
	Token string
}

// ChainConfig holds RPC endpoints for the balance oracle
type ChainConfig struct {
	RPCPrimary   string
	RPCSecondary string
	ChainID      int64
	TokenAddress string
}

// DefaultsConfig seeds the very first config snapshot when the database
// holds none yet.
type DefaultsConfig struct {
	PriceFiatMinorUnits int64
	MinUnlockFiatMinor  int64
	CommunityInviteLink string
	APYBasisPoints      int64
}

// OracleConfig holds balance oracle cache configuration
type OracleConfig struct {
	CacheTTL time.Duration
}

// RateLimitConfig holds per-account request rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "token_gate"),
				User:           getEnv("POSTGRES_USER", "gate"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "token_gate"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Admin: AdminConfig{
			Token: strings.TrimSpace(getEnv("ADMIN_TOKEN", "")),
		},
		Chain: ChainConfig{
			RPCPrimary:   getEnv("CHAIN_RPC_PRIMARY", ""),
			RPCSecondary: getEnv("CHAIN_RPC_SECONDARY", ""),
			ChainID:      int64(getEnvAsInt("CHAIN_ID", 56)),
			TokenAddress: getEnv("TOKEN_ADDRESS", ""),
		},
		Defaults: DefaultsConfig{
			PriceFiatMinorUnits: int64(getEnvAsInt("DEFAULT_PRICE_FIAT_MINOR", 44400)),
			MinUnlockFiatMinor:  int64(getEnvAsInt("DEFAULT_MIN_UNLOCK_FIAT_MINOR", 3900)),
			CommunityInviteLink: getEnv("COMMUNITY_INVITE_LINK", ""),
			APYBasisPoints:      int64(getEnvAsInt("DEFAULT_APY_BASIS_POINTS", 1500)),
		},
		Oracle: OracleConfig{
			CacheTTL: getEnvAsDuration("ORACLE_CACHE_TTL", 15*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate rejects values the service cannot start with.
func (c *Config) validate() error {
	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive")
	}
	if c.Defaults.APYBasisPoints < 0 {
		return fmt.Errorf("DEFAULT_APY_BASIS_POINTS must not be negative")
	}
	if c.Defaults.PriceFiatMinorUnits < 0 || c.Defaults.MinUnlockFiatMinor < 0 {
		return fmt.Errorf("default fiat amounts must not be negative")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit values must be positive")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
