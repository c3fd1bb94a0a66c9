package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/tarsy-labs/extrakt/ent"
	"github.com/tarsy-labs/extrakt/ent/job"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// Store is the ent-backed persistence layer for jobs: atomic claim,
// terminal-status writes, and orphan recovery. All JSON-typed Job fields
// are stored as generic maps and converted to/from their strongly-typed
// pkg/models shapes at this boundary.
type Store struct {
	client *ent.Client
}

// NewStore wraps an ent client for job persistence.
func NewStore(client *ent.Client) *Store {
	return &Store{client: client}
}

// DequeueBatch atomically claims up to batchSize queued jobs using
// SELECT ... FOR UPDATE SKIP LOCKED, ordered by created_at for FIFO
// processing, and marks them running.
func (s *Store) DequeueBatch(ctx context.Context, podID string, batchSize int) ([]*models.Job, error) {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Job.Query().
		Where(job.StatusEQ(job.StatusQueued)).
		Order(ent.Asc(job.FieldCreatedAt)).
		Limit(batchSize).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query queued jobs: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoJobsAvailable
	}

	now := time.Now()
	claimed := make([]*models.Job, 0, len(rows))
	for _, row := range rows {
		updated, err := row.Update().
			SetStatus(job.StatusRunning).
			SetStartedAt(now).
			SetUpdatedAt(now).
			SetPodID(podID).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", row.ID, err)
		}
		m, err := toModel(updated)
		if err != nil {
			return nil, fmt.Errorf("failed to decode claimed job %s: %w", row.ID, err)
		}
		claimed = append(claimed, m)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return claimed, nil
}

// Heartbeat refreshes updated_at for a job still in flight, keeping it out
// of orphan detection.
func (s *Store) Heartbeat(ctx context.Context, jobID string) error {
	return s.client.Job.UpdateOneID(jobID).
		SetUpdatedAt(time.Now()).
		Exec(ctx)
}

// MarkCompleted persists a terminal completed/requires_review/failed status
// along with the job's result and debug info.
func (s *Store) MarkCompleted(ctx context.Context, jobID string, status models.JobStatus, result *models.JobResult, debugInfo *models.DebugInfo) error {
	update := s.client.Job.UpdateOneID(jobID).
		SetStatus(job.Status(status)).
		SetUpdatedAt(time.Now())

	if result != nil {
		resultMap, err := toMap(result)
		if err != nil {
			return fmt.Errorf("failed to encode job result: %w", err)
		}
		update = update.SetResult(resultMap)
	}
	if debugInfo != nil {
		debugMap, err := toMap(debugInfo)
		if err != nil {
			return fmt.Errorf("failed to encode debug info: %w", err)
		}
		update = update.SetDebugInfo(debugMap)
	}

	return update.Exec(ctx)
}

// MarkFailed records a terminal failure: status always becomes failed.
// countsAsRetry is false for rate-limit refusals, which should not consume
// a retry attempt toward maxRetries; every other failure increments it.
// Re-enqueueing a failed job for another attempt is an external decision —
// the coordinator only reports whether attempts remain (willRetry) via the
// notification it dispatches; MarkFailed itself never requeues.
func (s *Store) MarkFailed(ctx context.Context, jobID, errMsg string, countsAsRetry bool) error {
	current, err := s.client.Job.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	attempts := current.Attempts
	if countsAsRetry {
		attempts++
	}

	return s.client.Job.UpdateOneID(jobID).
		SetStatus(job.StatusFailed).
		SetAttempts(attempts).
		SetErrorMessage(errMsg).
		SetUpdatedAt(time.Now()).
		Exec(ctx)
}

// RecoverOrphans resets running jobs whose updated_at is older than
// threshold back to queued for reprocessing. Unlike a terminal failure,
// orphan recovery never consumes a retry attempt: a jobs's own crash is not
// the job's fault.
func (s *Store) RecoverOrphans(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)

	orphans, err := s.client.Job.Query().
		Where(
			job.StatusEQ(job.StatusRunning),
			job.UpdatedAtLT(cutoff),
		).
		All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query orphaned jobs: %w", err)
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	recovered := 0
	for _, orphan := range orphans {
		podID := "unknown"
		if orphan.PodID != nil {
			podID = *orphan.PodID
		}
		msg := fmt.Sprintf("Job was interrupted by pod %s and has been reset to queued", podID)
		if err := s.client.Job.UpdateOneID(orphan.ID).
			SetStatus(job.StatusQueued).
			ClearStartedAt().
			SetErrorMessage(appendErrorMessage(orphan.ErrorMessage, msg)).
			SetUpdatedAt(time.Now()).
			Exec(ctx); err != nil {
			continue
		}
		recovered++
	}

	return recovered, nil
}

// CleanupStartupOrphans resets jobs this pod previously claimed and left
// running when it crashed or was killed. Called once at startup, before the
// poll loop begins, so a restarted pod does not wait for the periodic
// orphan scan to reclaim its own abandoned work.
func (s *Store) CleanupStartupOrphans(ctx context.Context, podID string) (int, error) {
	orphans, err := s.client.Job.Query().
		Where(
			job.StatusEQ(job.StatusRunning),
			job.PodIDEQ(podID),
		).
		All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query startup orphans: %w", err)
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	recovered := 0
	msg := fmt.Sprintf("Job was interrupted by pod %s restart and has been reset to queued", podID)
	for _, orphan := range orphans {
		if err := s.client.Job.UpdateOneID(orphan.ID).
			SetStatus(job.StatusQueued).
			ClearStartedAt().
			SetErrorMessage(appendErrorMessage(orphan.ErrorMessage, msg)).
			SetUpdatedAt(time.Now()).
			Exec(ctx); err != nil {
			continue
		}
		recovered++
	}

	return recovered, nil
}

// appendErrorMessage appends addition to a job's existing error_message
// rather than discarding it, so repeated orphan recovery (or recovery
// after an earlier terminal failure) keeps the full history.
func appendErrorMessage(existing *string, addition string) string {
	if existing != nil && *existing != "" {
		return *existing + "; " + addition
	}
	return addition
}

// UpdateProgress records best-effort entity progress for a running job.
// Concurrent writers may race; the last write wins. Callers should treat
// a returned error as non-fatal to the job itself.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, processed, total int) error {
	return s.client.Job.UpdateOneID(jobID).
		SetProcessedItems(processed).
		SetTotalItems(total).
		SetUpdatedAt(time.Now()).
		Exec(ctx)
}

// QueueDepth returns the count of jobs currently waiting to be claimed.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	return s.client.Job.Query().Where(job.StatusEQ(job.StatusQueued)).Count(ctx)
}

func toModel(row *ent.Job) (*models.Job, error) {
	m := &models.Job{
		ID:         row.ID,
		SourceType: models.SourceType(row.SourceType),
		ProjectID:  row.ProjectID,
		Status:     models.JobStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		Attempts:   row.Attempts,
	}
	if row.SourceID != nil {
		m.SourceID = *row.SourceID
	}
	if row.SubjectID != nil {
		m.SubjectID = *row.SubjectID
	}
	if row.PodID != nil {
		m.PodID = *row.PodID
	}
	if row.StartedAt != nil {
		m.StartedAt = row.StartedAt
	}
	if row.ErrorMessage != nil {
		m.ErrorMessage = *row.ErrorMessage
	}
	if row.ProcessedItems != nil {
		m.ProcessedItems = *row.ProcessedItems
	}
	if row.TotalItems != nil {
		m.TotalItems = *row.TotalItems
	}
	if row.SourceMetadata != nil {
		m.SourceMetadata = row.SourceMetadata
	}
	if row.ExtractionConfig != nil {
		var cfg models.ExtractionConfig
		if err := decodeMap(row.ExtractionConfig, &cfg); err != nil {
			return nil, fmt.Errorf("decoding extraction_config: %w", err)
		}
		m.ExtractionConfig = &cfg
	}
	if row.Result != nil {
		var result models.JobResult
		if err := decodeMap(row.Result, &result); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
		m.Result = &result
	}
	if row.DebugInfo != nil {
		var debug models.DebugInfo
		if err := decodeMap(row.DebugInfo, &debug); err != nil {
			return nil, fmt.Errorf("decoding debug_info: %w", err)
		}
		m.DebugInfo = &debug
	}

	return m, nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeMap(m map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
