package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashrecon/jobs"
)

type stubEnqueuer struct {
	payloads []jobs.EvidenceSweepPayload
	err      error
}

func (s *stubEnqueuer) EnqueueEvidenceSweep(_ context.Context, payload jobs.EvidenceSweepPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.payloads = append(s.payloads, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, nil
}

func TestSweepCommandUsesDate(t *testing.T) {
	enq := &stubEnqueuer{}
	c := NewJobsCLI(enq, nil)
	var stdout, stderr bytes.Buffer

	code := c.SweepCommand(context.Background(), SweepOptions{Date: "2024-03-15", Force: true, JSONOutput: true, Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, 0, code, stderr.String())
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC), enq.payloads[0].At)
	assert.True(t, enq.payloads[0].Force)

	var result sweepResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "task-1", result.TaskID)
}

func TestSweepCommandDefaultsToNow(t *testing.T) {
	enq := &stubEnqueuer{}
	c := NewJobsCLI(enq, nil)
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	var stdout bytes.Buffer

	require.Equal(t, 0, c.SweepCommand(context.Background(), SweepOptions{Stdout: &stdout}))
	assert.Equal(t, now, enq.payloads[0].At)
	assert.True(t, strings.HasPrefix(stdout.String(), "enqueued evidence:sweep task task-1"))
}

func TestSweepCommandFailures(t *testing.T) {
	var stderr bytes.Buffer
	c := NewJobsCLI(&stubEnqueuer{}, nil)
	assert.Equal(t, 1, c.SweepCommand(context.Background(), SweepOptions{Date: "15/03/2024", Stderr: &stderr}))
	assert.Contains(t, stderr.String(), "sweep:")

	failing := NewJobsCLI(&stubEnqueuer{err: errors.New("redis down")}, nil)
	assert.Equal(t, 1, failing.SweepCommand(context.Background(), SweepOptions{Stderr: &stderr}))
}

func TestStatsCommand(t *testing.T) {
	c := NewJobsCLI(nil, stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}})
	var stdout bytes.Buffer
	require.Equal(t, 0, c.StatsCommand(context.Background(), StatsOptions{Stdout: &stdout}))
	assert.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=1 archived=0\n", stdout.String())

	var stderr bytes.Buffer
	assert.Equal(t, 1, NewJobsCLI(nil, nil).StatsCommand(context.Background(), StatsOptions{Stderr: &stderr}))
}
