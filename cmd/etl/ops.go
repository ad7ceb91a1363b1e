package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"movies-etl/internal/shared"
	"movies-etl/pkg/container"
)

// startOpsServer serves the operational HTTP surface: health probes, sync
// status, and a manual cycle trigger. This is not the catalog admin API,
// which lives outside this service.
func startOpsServer(c *container.Container, cfg *Config) {
	if c.Config.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(ctx *gin.Context) {
		checks := gin.H{}
		status := http.StatusOK

		probes := []struct {
			name string
			fn   func() error
		}{
			{"postgres", func() error { return c.DB.HealthCheck(ctx.Request.Context()) }},
			{"redis", func() error { return c.Redis.HealthCheck(ctx.Request.Context()) }},
			{"elasticsearch", func() error { return c.Elastic.HealthCheck(ctx.Request.Context()) }},
		}
		for _, probe := range probes {
			if err := probe.fn(); err != nil {
				checks[probe.name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				checks[probe.name] = "up"
			}
		}

		state := "UP"
		if status != http.StatusOK {
			state = "DEGRADED"
		}
		ctx.JSON(status, gin.H{"status": state, "service": "movies-etl", "checks": checks})
	})

	router.GET("/ready", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "READY"})
	})

	router.GET("/status", func(ctx *gin.Context) {
		status, err := c.SyncService.Status(ctx.Request.Context())
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, status)
	})

	router.GET("/quarantine", func(ctx *gin.Context) {
		limit := 50
		if raw := ctx.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		records, err := c.Quarantine.List(ctx.Request.Context(), limit)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
	})

	// Manual cycle trigger; the lease and the single-worker queue keep a
	// manual run from overlapping a scheduled one.
	router.POST("/sync", func(ctx *gin.Context) {
		payload, err := json.Marshal(shared.RunSyncCyclePayload{Manual: true})
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		task := asynq.NewTask(shared.TypeRunSyncCycle, payload)
		info, err := c.AsynqClient.EnqueueContext(
			ctx.Request.Context(),
			task,
			asynq.Queue(shared.QueueSync),
			asynq.MaxRetry(0),
		)
		if err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		ctx.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
	})

	log.Printf("[Ops] Starting ops server on :%s", cfg.OpsPort)
	if err := router.Run(":" + cfg.OpsPort); err != nil {
		log.Printf("[Ops] Failed to start: %v", err)
	}
}
