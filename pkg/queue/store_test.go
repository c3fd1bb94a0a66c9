package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarsy-labs/extrakt/ent"
	"github.com/tarsy-labs/extrakt/pkg/models"
	"github.com/tarsy-labs/extrakt/pkg/queue"
	"github.com/tarsy-labs/extrakt/test/util"
)

func seedJob(t *testing.T, client *ent.Client, id, projectID string, createdAt time.Time) {
	t.Helper()
	_, err := client.Job.Create().
		SetID(id).
		SetSourceType("manual").
		SetProjectID(projectID).
		SetCreatedAt(createdAt).
		Save(context.Background())
	require.NoError(t, err)
}

func TestDequeueBatchClaimsInFIFOOrderAndSetsRunning(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)

	now := time.Now()
	seedJob(t, client, "job-1", "proj-1", now.Add(-2*time.Minute))
	seedJob(t, client, "job-2", "proj-1", now.Add(-1*time.Minute))

	claimed, err := store.DequeueBatch(context.Background(), "pod-a", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "job-1", claimed[0].ID)
	assert.Equal(t, "job-2", claimed[1].ID)
	assert.Equal(t, models.JobRunning, claimed[0].Status)
	assert.Equal(t, "pod-a", claimed[0].PodID)
}

func TestDequeueBatchReturnsErrWhenEmpty(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)

	_, err := store.DequeueBatch(context.Background(), "pod-a", 10)
	assert.ErrorIs(t, err, queue.ErrNoJobsAvailable)
}

func TestMarkCompletedPersistsResultAndDebugInfo(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)
	seedJob(t, client, "job-1", "proj-1", time.Now())

	result := &models.JobResult{CreatedObjects: []string{"obj-1"}, SuccessfulItems: 1, TotalItems: 1}
	debug := &models.DebugInfo{JobID: "job-1", ProjectID: "proj-1"}

	err := store.MarkCompleted(context.Background(), "job-1", models.JobCompleted, result, debug)
	require.NoError(t, err)

	row, err := client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", string(row.Status))
	assert.NotNil(t, row.Result)
	assert.NotNil(t, row.DebugInfo)
}

func TestMarkFailedIsAlwaysTerminalAndIncrementsAttemptsWhenRetryable(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)
	seedJob(t, client, "job-1", "proj-1", time.Now())

	err := store.MarkFailed(context.Background(), "job-1", "boom", true)
	require.NoError(t, err)

	row, err := client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Attempts)
	assert.Equal(t, "failed", string(row.Status))
}

func TestMarkFailedDoesNotConsumeRetryWhenRateLimited(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)
	seedJob(t, client, "job-1", "proj-1", time.Now())

	err := store.MarkFailed(context.Background(), "job-1", "rate limited", false)
	require.NoError(t, err)

	row, err := client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 0, row.Attempts)
	assert.Equal(t, "failed", string(row.Status))
}

func TestUpdateProgressPersistsProcessedAndTotal(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)
	seedJob(t, client, "job-1", "proj-1", time.Now())

	require.NoError(t, store.UpdateProgress(context.Background(), "job-1", 3, 10))

	row, err := client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, row.ProcessedItems)
	require.NotNil(t, row.TotalItems)
	assert.Equal(t, 3, *row.ProcessedItems)
	assert.Equal(t, 10, *row.TotalItems)

	require.NoError(t, store.UpdateProgress(context.Background(), "job-1", 10, 10))
	row, err = client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 10, *row.ProcessedItems)
}

func TestRecoverOrphansResetsStaleRunningJobsToQueued(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)

	seedJob(t, client, "job-1", "proj-1", time.Now())
	stale := time.Now().Add(-10 * time.Minute)
	_, err := client.Job.UpdateOneID("job-1").
		SetStatus("running").
		SetStartedAt(stale).
		SetUpdatedAt(stale).
		Save(context.Background())
	require.NoError(t, err)

	recovered, err := store.RecoverOrphans(context.Background(), 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	row, err := client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "queued", string(row.Status))
	assert.Equal(t, 0, row.Attempts, "orphan recovery must not consume a retry attempt")
	assert.Nil(t, row.StartedAt, "orphan recovery must clear started_at so the next dequeue doesn't inherit the crashed run's timestamp")
}

func TestCleanupStartupOrphansOnlyTouchesOwnPod(t *testing.T) {
	client := util.NewTestClient(t)
	store := queue.NewStore(client)

	seedJob(t, client, "job-1", "proj-1", time.Now())
	seedJob(t, client, "job-2", "proj-1", time.Now())
	started := time.Now().Add(-1 * time.Minute)
	_, err := client.Job.UpdateOneID("job-1").SetStatus("running").SetStartedAt(started).SetPodID("pod-a").Save(context.Background())
	require.NoError(t, err)
	_, err = client.Job.UpdateOneID("job-2").SetStatus("running").SetStartedAt(started).SetPodID("pod-b").Save(context.Background())
	require.NoError(t, err)

	recovered, err := store.CleanupStartupOrphans(context.Background(), "pod-a")
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	row1, err := client.Job.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "queued", string(row1.Status))
	assert.Nil(t, row1.StartedAt, "startup orphan recovery must clear started_at")

	row2, err := client.Job.Get(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, "running", string(row2.Status))
	assert.NotNil(t, row2.StartedAt, "jobs owned by other pods must be untouched")
}
