package main

import (
	"github.com/hibiken/asynq"

	"movies-etl/internal/domains/etl/job"
	"movies-etl/internal/shared"
	"movies-etl/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	runSyncCycle *job.RunSyncCycleHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		runSyncCycle: job.NewRunSyncCycleHandler(c.SyncService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeRunSyncCycle, h.runSyncCycle.ProcessTask)
}
