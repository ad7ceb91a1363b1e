package shared

// Task types handled by the ETL worker.
const (
	TypeRunSyncCycle = "sync:run_cycle"
)

// Queue names, mapped to priorities in the asynq server config.
const (
	QueueSync = "sync"
)

// RunSyncCyclePayload is the payload of a sync:run_cycle task.
// Manual indicates the cycle was triggered from the ops endpoint
// rather than the scheduler.
type RunSyncCyclePayload struct {
	Manual bool `json:"manual,omitempty"`
}
