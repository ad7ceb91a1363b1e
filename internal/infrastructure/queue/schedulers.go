package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"movies-etl/internal/config"
	"movies-etl/internal/shared"
	"movies-etl/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	syncCfg   config.SyncConfig
}

func NewScheduler(redisAddress string, syncCfg config.SyncConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		syncCfg:   syncCfg,
	}
}

func (s *Scheduler) RegisterSyncJobs() error {
	return s.registerRunSyncCycleJob()
}

// The recurring cycle trigger. MaxRetry is 0 on purpose: a failed cycle is
// not re-enqueued, the next scheduled tick resumes from the committed
// watermark and re-discovers whatever was left behind.
func (s *Scheduler) registerRunSyncCycleJob() error {
	payload, err := json.Marshal(shared.RunSyncCyclePayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeRunSyncCycle, payload)

	_, err = s.scheduler.Register(
		s.syncCfg.Schedule,
		task,
		asynq.Queue(shared.QueueSync),
		asynq.MaxRetry(0),
		asynq.Timeout(s.syncCfg.CycleBudget+time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register RunSyncCycle job", err)
		return err
	}

	logger.Info("✓ Registered RunSyncCycle", map[string]interface{}{
		"schedule": s.syncCfg.Schedule,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
