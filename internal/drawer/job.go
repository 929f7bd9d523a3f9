package drawer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashrecon/internal/money"
	"github.com/odyssey-erp/cashrecon/jobs"
)

// VarianceAlertJob consumes drawer variance alerts. Delivery to a manager happens downstream
// of the log stream.
type VarianceAlertJob struct {
	logger *slog.Logger
}

// NewVarianceAlertJob constructs a job handler.
func NewVarianceAlertJob(logger *slog.Logger) *VarianceAlertJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &VarianceAlertJob{logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *VarianceAlertJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.DrawerVarianceAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.CountID == 0 {
		return asynq.SkipRetry
	}
	j.logger.WarnContext(ctx, "drawer variance out of threshold",
		slog.Int64("count_id", payload.CountID),
		slog.Int64("store_id", payload.StoreID),
		slog.Int64("shift_id", payload.ShiftID),
		slog.String("count_type", payload.CountType),
		slog.String("variance", money.Format(payload.VarianceCents)),
		slog.Time("counted_at", payload.CountedAt),
	)
	return nil
}
