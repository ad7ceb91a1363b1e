package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"movies-etl/pkg/container"
)

// startServices performs startup health checks and launches the ops server.
func startServices(c *container.Container, cfg *Config) error {
	log.Println("============================================")
	log.Println("Movies ETL Worker Starting...")
	log.Println("============================================")

	if err := checkAll(c); err != nil {
		log.Printf("Health check failed: %v\n", err)
		return err
	}

	go startOpsServer(c, cfg)

	return nil
}

// checkAll runs all startup health checks
func checkAll(c *container.Container) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"PostgreSQL", c.DB.HealthCheck},
		{"Redis", c.Redis.HealthCheck},
		{"Elasticsearch", c.Elastic.HealthCheck},
	}

	for _, check := range checks {
		log.Printf("Checking %s...\n", check.name)
		if err := check.fn(ctx); err != nil {
			log.Printf("✗ %s: %v\n", check.name, err)
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Printf("✓ %s: OK\n", check.name)
	}

	return nil
}
