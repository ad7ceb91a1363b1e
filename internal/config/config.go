package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full application configuration, populated from
// environment variables.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Elastic  ElasticConfig
	Sync     SyncConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	OpsPort     string // health/status HTTP server
	Version     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// SyncConfig drives the sync coordinator.
type SyncConfig struct {
	// Cron expression for the recurring cycle trigger.
	Schedule string
	// Max documents per bulk request.
	BatchSize int
	// Concurrent batch writers within one cycle.
	Workers int
	// Wall-clock budget for one cycle; an overrun aborts without commit.
	CycleBudget time.Duration
	// Lease held over the watermark while a cycle runs.
	LeaseTTL time.Duration
	// Bulk retry policy for transient index failures.
	RetryMax   int
	RetryDelay time.Duration
}

// Load reads config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Movies ETL"),
			Environment: getEnv("APP_ENV", "development"),
			OpsPort:     getEnv("OPS_PORT", "9999"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "movies"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Elastic: ElasticConfig{
			Addresses: []string{getEnv("ES_URL", "http://localhost:9200")},
			Username:  getEnv("ES_USER", ""),
			Password:  getEnv("ES_PASSWORD", ""),
			Index:     getEnv("ES_INDEX", "movies"),
		},
		Sync: SyncConfig{
			Schedule:    getEnv("SYNC_SCHEDULE", "* * * * *"),
			BatchSize:   getEnvInt("SYNC_BATCH_SIZE", 100),
			Workers:     getEnvInt("SYNC_WORKERS", 4),
			CycleBudget: getEnvDuration("SYNC_CYCLE_BUDGET", 5*time.Minute),
			LeaseTTL:    getEnvDuration("SYNC_LEASE_TTL", 10*time.Minute),
			RetryMax:    getEnvInt("SYNC_RETRY_MAX", 5),
			RetryDelay:  getEnvDuration("SYNC_RETRY_DELAY", 500*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if c.App.Environment == "production" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD must be set in production")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("SYNC_WORKERS must be positive")
	}
	if c.Sync.LeaseTTL < c.Sync.CycleBudget {
		return fmt.Errorf("SYNC_LEASE_TTL must cover SYNC_CYCLE_BUDGET")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
