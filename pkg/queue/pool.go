package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tarsy-labs/extrakt/pkg/config"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// Pool owns the single Worker for this pod plus the background orphan
// detection loop. Each pod runs its own Pool against the shared queue;
// there is no per-pod worker count to tune since Worker already processes
// its claimed batch sequentially.
type Pool struct {
	podID    string
	store    *Store
	config   *config.QueueConfig
	worker   *Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	orphans orphanState
}

// NewPool creates a new queue pool for the given pod.
func NewPool(podID string, store *Store, cfg *config.QueueConfig, processor JobProcessor) *Pool {
	return &Pool{
		podID:  podID,
		store:  store,
		config: cfg,
		worker: NewWorker(podID, store, cfg, processor),
		stopCh: make(chan struct{}),
	}
}

// Start cleans up this pod's prior-run orphans, then starts the worker and
// the periodic orphan detection loop. Safe to call multiple times;
// subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Queue pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	recovered, err := p.store.CleanupStartupOrphans(ctx, p.podID)
	if err != nil {
		slog.Error("Startup orphan cleanup failed", "pod_id", p.podID, "error", err)
	} else if recovered > 0 {
		slog.Warn("Recovered startup orphans from previous run", "pod_id", p.podID, "count", recovered)
	}

	slog.Info("Starting queue pool", "pod_id", p.podID)
	p.worker.Start(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	return nil
}

// Stop signals the worker and orphan loop to stop, waiting for the
// in-flight batch to finish within GracefulShutdownTimeout.
func (p *Pool) Stop() {
	slog.Info("Stopping queue pool gracefully", "pod_id", p.podID)
	p.worker.Stop()
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("Queue pool stopped gracefully", "pod_id", p.podID)
}

// Health returns the current health status of the pool.
func (p *Pool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, err := p.store.QueueDepth(ctx)
	dbHealthy := err == nil
	var dbError string
	if err != nil {
		dbError = err.Error()
	}

	status, currentJobID, jobsProcessed, _ := p.worker.Health()

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:        dbHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		WorkerStatus:     string(status),
		CurrentJobID:     currentJobID,
		JobsProcessed:    jobsProcessed,
		QueueDepth:       queueDepth,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

// runOrphanDetection periodically scans for orphaned jobs. All pods run
// this independently; resets are idempotent.
func (p *Pool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			recovered, err := p.store.RecoverOrphans(ctx, p.config.OrphanThreshold)
			if err != nil {
				slog.Error("Orphan detection failed", "error", err)
				continue
			}
			if recovered > 0 {
				slog.Warn("Recovered orphaned jobs", "count", recovered)
			}
			p.orphans.mu.Lock()
			p.orphans.lastOrphanScan = time.Now()
			p.orphans.orphansRecovered += recovered
			p.orphans.mu.Unlock()
		}
	}
}
