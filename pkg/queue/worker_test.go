package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/models"
	"github.com/tarsy-labs/extrakt/pkg/queue"
	"github.com/tarsy-labs/extrakt/test/util"
)

type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	result    *queue.ProcessResult
}

func (f *fakeProcessor) Process(_ context.Context, job *models.Job, progressFn func(done, total int)) *queue.ProcessResult {
	f.mu.Lock()
	f.processed = append(f.processed, job.ID)
	f.mu.Unlock()
	progressFn(1, 1)
	if f.result != nil {
		return f.result
	}
	return &queue.ProcessResult{Status: models.JobCompleted, Result: &models.JobResult{SuccessfulItems: 1, TotalItems: 1}}
}

func (f *fakeProcessor) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.processed))
	copy(out, f.processed)
	return out
}

func testQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		Enabled:                 true,
		BatchSize:               5,
		PollInterval:            20 * time.Millisecond,
		PollIntervalJitter:      5 * time.Millisecond,
		OrphanDetectionInterval: time.Minute,
		OrphanThreshold:         5 * time.Minute,
		GracefulShutdownTimeout: 2 * time.Second,
	}
}

func TestWorkerProcessesClaimedJobsSequentially(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)
	seedJob(t, client, "job-1", "proj-1", time.Now().Add(-time.Second))
	seedJob(t, client, "job-2", "proj-1", time.Now())

	proc := &fakeProcessor{}
	w := queue.NewWorker("pod-a", store, testQueueConfig(), proc)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.Eventually(t, func() bool {
		return len(proc.seen()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	w.Stop()

	assert.Equal(t, []string{"job-1", "job-2"}, proc.seen())
}

func TestWorkerMarksJobFailedOnProcessorError(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)
	seedJob(t, client, "job-1", "proj-1", time.Now())

	proc := &fakeProcessor{result: &queue.ProcessResult{Status: models.JobFailed, Error: errors.New("llm unavailable"), Retryable: true}}
	w := queue.NewWorker("pod-a", store, testQueueConfig(), proc)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	require.Eventually(t, func() bool {
		row, err := client.Job.Get(context.Background(), "job-1")
		return err == nil && row.Attempts == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	w.Stop()

	row, err := client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", string(row.Status))
}
