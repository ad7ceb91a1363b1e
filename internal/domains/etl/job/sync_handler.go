package job

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"movies-etl/internal/domains/etl"
	"movies-etl/internal/shared"
	"movies-etl/pkg/logger"
)

// RunSyncCycleHandler executes one coordinator cycle per task.
type RunSyncCycleHandler struct {
	service etl.Service
}

func NewRunSyncCycleHandler(service etl.Service) *RunSyncCycleHandler {
	return &RunSyncCycleHandler{service: service}
}

func (h *RunSyncCycleHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.RunSyncCyclePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Error("Unmarshal fail due to ", err)
		return err
	}

	log.Info().
		Bool("manual", payload.Manual).
		Msg("Starting sync cycle")

	report, err := h.service.RunCycle(ctx)
	if err != nil {
		// Failures stay inside the cycle. Returning nil keeps asynq from
		// re-enqueueing: the next scheduled tick resumes from the last
		// committed watermark and picks the same roots up again.
		logger.Error("Sync cycle failed", err)
		return nil
	}

	if report.Skipped {
		log.Info().Msg("Sync cycle skipped")
		return nil
	}

	log.Info().
		Int("discovered", report.Discovered).
		Int("written", report.Written).
		Int("quarantined", report.Quarantined).
		Int("failed", report.Failed).
		Time("watermark", report.Watermark).
		Msg("Sync cycle completed")

	return nil
}
