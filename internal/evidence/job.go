package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/cashrecon/internal/jobs"
	"github.com/odyssey-erp/cashrecon/internal/shared"
	"github.com/odyssey-erp/cashrecon/jobs"
)

const sweepLockTTL = 30 * time.Minute

// Sweeper runs scheduled and forced purges.
type Sweeper interface {
	Sweep(ctx context.Context, req SweepRequest) (int, error)
	SweepDue(ctx context.Context, now time.Time) (int, error)
}

// SweepJob consumes evidence:sweep tasks. At most one worker sweeps a given day.
type SweepJob struct {
	Sweeper Sweeper
	Locker  *redislock.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSweepJob initialises the sweep handler. locker may be nil, in which case runs are not
// serialised across workers.
func NewSweepJob(sweeper Sweeper, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return &SweepJob{
		Sweeper: sweeper,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("evidence sweep: handler not configured")
	}
	var payload jobs.EvidenceSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	at := payload.At.UTC()
	if at.IsZero() {
		at = j.clock()
	}
	logger := j.logger().With(slog.Time("at", at), slog.Bool("force", payload.Force))

	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.PhotoSweepLockKey(at), sweepLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("evidence sweep already running elsewhere")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.Warn("release sweep lock", slog.Any("error", err))
			}
		}()
	}

	tracker := j.Metrics.Track(jobs.TaskEvidenceSweep)
	var (
		purged int
		err    error
	)
	if payload.Force {
		purged, err = j.Sweeper.Sweep(ctx, SweepRequest{Now: at, PurgeDayOfMonth: at.Day(), AllStores: true})
	} else {
		purged, err = j.Sweeper.SweepDue(ctx, at)
	}
	j.Metrics.AddPurged("photo", purged)
	if err != nil {
		logger.Error("evidence sweep failed", slog.Int("purged", purged), slog.Any("error", err))
	} else {
		logger.Info("evidence sweep completed", slog.Int("purged", purged))
	}
	return tracker.End(err)
}

func (j *SweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
