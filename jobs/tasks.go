package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEvidenceSweep purges closeout evidence past its retention window.
	TaskEvidenceSweep = "evidence:sweep"
	// TaskDrawerVarianceAlert announces an out-of-threshold drawer count.
	TaskDrawerVarianceAlert = "drawer:variance_alert"
)

// EvidenceSweepPayload carries the optional sweep instant. A zero At means the time the task runs.
type EvidenceSweepPayload struct {
	At time.Time `json:"at,omitempty"`
	// Force bypasses the purge-day check and sweeps every store.
	Force bool `json:"force,omitempty"`
}

// DrawerVarianceAlertPayload describes the count a manager should look at.
type DrawerVarianceAlertPayload struct {
	CountID       int64     `json:"count_id"`
	StoreID       int64     `json:"store_id"`
	ShiftID       int64     `json:"shift_id"`
	CountType     string    `json:"count_type"`
	VarianceCents int64     `json:"variance_cents"`
	CountedAt     time.Time `json:"counted_at"`
}

// NewEvidenceSweepTask constructs the sweep task used by both the cron and the CLI.
func NewEvidenceSweepTask(payload EvidenceSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEvidenceSweep, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// NewDrawerVarianceAlertTask constructs a variance alert task.
func NewDrawerVarianceAlertTask(payload DrawerVarianceAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDrawerVarianceAlert, data, asynq.MaxRetry(5)), nil
}
