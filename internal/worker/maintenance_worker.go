package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/observability"
	"go.uber.org/zap"
)

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type QueueReporter interface {
	Snapshot(ctx context.Context) (models.QueueSnapshot, error)
}

type KeyPurger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// MaintenanceWorker reaps stale processing transfers, refreshes the queue depth
// gauges and purges expired idempotency keys. The queue reporter and purger are optional.
type MaintenanceWorker struct {
	reaper   Sweeper
	queue    QueueReporter
	purger   KeyPurger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMaintenanceWorker(reaper Sweeper, queue QueueReporter, purger KeyPurger) *MaintenanceWorker {
	return &MaintenanceWorker{
		reaper:   reaper,
		queue:    queue,
		purger:   purger,
		interval: 30 * time.Second,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *MaintenanceWorker) WithInterval(interval time.Duration) *MaintenanceWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs maintenance at the configured interval.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	zap.L().Info("maintenance worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Processing rows left behind by a previous instance are reaped at startup.
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("maintenance worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("maintenance worker stop signal received")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *MaintenanceWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *MaintenanceWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RunOnce performs one pass. Each step runs even if an earlier one failed.
func (w *MaintenanceWorker) RunOnce(ctx context.Context) {
	now := w.now()

	if reaped, err := w.reaper.Sweep(ctx, now); err != nil {
		observability.IncrementWorkerRun("reaper", "failed")
		zap.L().Error("stale job sweep failed", zap.Error(err))
	} else {
		observability.IncrementWorkerRun("reaper", "success")
		if reaped > 0 {
			zap.L().Info("stale jobs reaped", zap.Int("count", reaped))
		}
	}

	if w.queue != nil {
		if _, err := w.queue.Snapshot(ctx); err != nil {
			observability.IncrementWorkerRun("queue_snapshot", "failed")
			zap.L().Warn("queue snapshot failed", zap.Error(err))
		} else {
			observability.IncrementWorkerRun("queue_snapshot", "success")
		}
	}

	if w.purger != nil {
		if purged, err := w.purger.Purge(ctx, now); err != nil {
			observability.IncrementWorkerRun("idempotency_purge", "failed")
			zap.L().Warn("idempotency purge failed", zap.Error(err))
		} else {
			observability.IncrementWorkerRun("idempotency_purge", "success")
			if purged > 0 {
				zap.L().Debug("expired idempotency keys purged", zap.Int64("count", purged))
			}
		}
	}
}
