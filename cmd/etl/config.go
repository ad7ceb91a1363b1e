package main

import (
	"log"

	"movies-etl/internal/shared/utils"
)

// Config holds process-level configuration for the ETL worker.
type Config struct {
	RedisAddr string
	OpsPort   string
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	cfg := &Config{
		RedisAddr: utils.GetEnvVariable("REDIS_HOST", "localhost:6379"),
		OpsPort:   utils.GetEnvVariable("OPS_PORT", "9999"),
	}

	log.Printf("[Config] Redis: %s, Ops port: %s", cfg.RedisAddr, cfg.OpsPort)

	return cfg
}
