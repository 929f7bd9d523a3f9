package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/cashrecon/internal/shared"
	"github.com/odyssey-erp/cashrecon/jobs"
)

// SweepEnqueuer submits evidence sweeps. *jobs.Client satisfies it.
type SweepEnqueuer interface {
	EnqueueEvidenceSweep(ctx context.Context, payload jobs.EvidenceSweepPayload) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for the reconciliation jobs.
type JobsCLI struct {
	client    SweepEnqueuer
	inspector jobs.QueueInspector
	now       func() time.Time
}

// NewJobsCLI initialises the CLI helpers.
func NewJobsCLI(client SweepEnqueuer, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector, now: time.Now}
}

// SweepOptions defines the flags of the sweep command.
type SweepOptions struct {
	// Date sweeps as of 03:00 UTC on the given business date instead of now.
	Date       string
	Force      bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

type sweepResult struct {
	TaskID string    `json:"task_id"`
	Queue  string    `json:"queue"`
	At     time.Time `json:"at"`
	Force  bool      `json:"force"`
}

// SweepCommand enqueues an evidence sweep and prints the task reference.
func (c *JobsCLI) SweepCommand(ctx context.Context, opts SweepOptions) int {
	opts = withWriters(opts)
	if c == nil || c.client == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "sweep: job client not configured")
		return 1
	}
	at := c.now().UTC()
	if strings.TrimSpace(opts.Date) != "" {
		day, err := shared.ParseBusinessDate(opts.Date)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "sweep: %v\n", err)
			return 1
		}
		at = day.Add(3 * time.Hour)
	}
	info, err := c.client.EnqueueEvidenceSweep(ctx, jobs.EvidenceSweepPayload{At: at, Force: opts.Force})
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "sweep: enqueue: %v\n", err)
		return 1
	}
	result := sweepResult{At: at, Force: opts.Force}
	if info != nil {
		result.TaskID = info.ID
		result.Queue = info.Queue
	}
	if opts.JSONOutput {
		return encode(opts.Stdout, opts.Stderr, result)
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s task %s on %s (at=%s force=%t)\n",
		jobs.TaskEvidenceSweep, result.TaskID, result.Queue, at.Format(time.RFC3339), opts.Force)
	return 0
}

// StatsOptions defines the flags of the stats command.
type StatsOptions struct {
	Queue      string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatsCommand prints the queue counters.
func (c *JobsCLI) StatsCommand(_ context.Context, opts StatsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if c == nil || c.inspector == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "stats: inspector not configured")
		return 1
	}
	queue := opts.Queue
	if queue == "" {
		queue = jobs.QueueDefault
	}
	stats, err := jobs.Stats(c.inspector, queue)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "stats: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		return encode(opts.Stdout, opts.Stderr, stats)
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}

func withWriters(opts SweepOptions) SweepOptions {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return opts
}

func encode(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(stderr, "encode output: %v\n", err)
		return 1
	}
	return 0
}

// ErrUnknownCommand indicates an unsupported subcommand.
var ErrUnknownCommand = errors.New("reconctl: unknown command")
