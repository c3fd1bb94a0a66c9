// Package queue provides durable job queue management: atomic dequeue via
// row-level locking, per-job processing with a configurable timeout,
// heartbeat-based orphan detection, and graceful shutdown.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/tarsy-labs/extrakt/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no queued jobs are available to claim.
	ErrNoJobsAvailable = errors.New("no jobs available")
)

// JobProcessor owns the entire per-job extraction pipeline. The worker
// handles only claiming, heartbeat, terminal-status persistence, and
// orphan recovery; JobProcessor.Process performs every pipeline step
// (tenant scoping, document preparation, schema resolution, LLM
// extraction, confidence/linking/graph-write, relationship resolution,
// chunk linking) and reports progress via progressFn.
type JobProcessor interface {
	Process(ctx context.Context, job *models.Job, progressFn func(done, total int)) *ProcessResult
}

// ProcessResult is the terminal outcome of one job's processing.
type ProcessResult struct {
	Status    models.JobStatus
	Result    *models.JobResult
	DebugInfo *models.DebugInfo
	Error     error
	Retryable bool
}

// PoolHealth reports the worker pool's current health.
type PoolHealth struct {
	IsHealthy        bool      `json:"is_healthy"`
	DBReachable      bool      `json:"db_reachable"`
	DBError          string    `json:"db_error,omitempty"`
	PodID            string    `json:"pod_id"`
	WorkerStatus     string    `json:"worker_status"`
	CurrentJobID     string    `json:"current_job_id,omitempty"`
	JobsProcessed    int       `json:"jobs_processed"`
	QueueDepth       int       `json:"queue_depth"`
	LastOrphanScan   time.Time `json:"last_orphan_scan"`
	OrphansRecovered int       `json:"orphans_recovered"`
}
