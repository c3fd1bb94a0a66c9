package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// WorkerStatus represents the current state of the worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is the single polling loop that claims a batch of jobs each tick
// and processes them sequentially, one at a time. Unlike a concurrent
// worker pool, there is exactly one Worker per pod; concurrency across
// pods comes from each pod running its own Worker against the same queue.
type Worker struct {
	podID     string
	store     *Store
	config    *config.QueueConfig
	processor JobProcessor
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(podID string, store *Store, cfg *config.QueueConfig, processor JobProcessor) *Worker {
	return &Worker{
		podID:        podID,
		store:        store,
		config:       cfg,
		processor:    processor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits, up to GracefulShutdownTimeout,
// for the in-flight batch to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.config.GracefulShutdownTimeout):
		slog.Warn("Worker did not stop within graceful shutdown timeout", "pod_id", w.podID)
	}
}

// Health returns the current worker health snapshot.
func (w *Worker) Health() (status WorkerStatus, currentJobID string, jobsProcessed int, lastActivity time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status, w.currentJobID, w.jobsProcessed, w.lastActivity
}

// run is the main poll-claim-process loop: one tick claims up to
// BatchSize jobs, then processes each claimed job to completion before
// moving to the next, one job in flight at a time.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			jobs, err := w.store.DequeueBatch(ctx, w.podID, w.config.BatchSize)
			if err != nil {
				if errors.Is(err, ErrNoJobsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Failed to dequeue batch", "error", err)
				w.sleep(time.Second)
				continue
			}

			for _, job := range jobs {
				select {
				case <-w.stopCh:
					return
				default:
				}
				w.processOne(ctx, job)
			}
		}
	}
}

// processOne runs a single job through the processor, with heartbeat and
// terminal-status persistence.
func (w *Worker) processOne(ctx context.Context, job *models.Job) {
	log := slog.With("job_id", job.ID, "pod_id", w.podID)
	log.Info("Job claimed")

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	timeout := extractionTimeout(job)
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	go w.runHeartbeat(heartbeatCtx, job.ID)

	result := w.processor.Process(jobCtx, job, func(done, total int) {
		if err := w.store.UpdateProgress(context.Background(), job.ID, done, total); err != nil {
			log.Warn("Failed to persist job progress", "error", err, "done", done, "total", total)
		}
	})
	cancelHeartbeat()

	if result == nil {
		result = &ProcessResult{Status: models.JobFailed, Error: errors.New("processor returned nil result")}
	}

	if result.Error != nil {
		msg := result.Error.Error()
		if err := w.store.MarkFailed(context.Background(), job.ID, msg, result.Retryable); err != nil {
			log.Error("Failed to persist job failure", "error", err)
		}
		log.Warn("Job failed", "error", msg, "retryable", result.Retryable)
	} else {
		if err := w.store.MarkCompleted(context.Background(), job.ID, result.Status, result.Result, result.DebugInfo); err != nil {
			log.Error("Failed to persist job completion", "error", err)
		}
		log.Info("Job processing complete", "status", result.Status)
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()
}

// runHeartbeat periodically refreshes updated_at for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, jobID); err != nil {
				slog.Warn("Heartbeat update failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// extractionTimeout resolves the job's per-job timeout override, falling
// back to a conservative default when unset.
func extractionTimeout(job *models.Job) time.Duration {
	const defaultTimeout = 120 * time.Second
	if job.ExtractionConfig == nil || job.ExtractionConfig.TimeoutSeconds == nil {
		return defaultTimeout
	}
	return time.Duration(*job.ExtractionConfig.TimeoutSeconds) * time.Second
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollInterval returns the poll duration with jitter applied.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
