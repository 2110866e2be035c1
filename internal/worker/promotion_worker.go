package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/ussd-relay/internal/observability"
	"go.uber.org/zap"
)

// Promoter moves delayed transfers whose execute_after has passed into pending.
type Promoter interface {
	PromoteDue(ctx context.Context) (int64, error)
}

// PromotionWorker promotes due delayed transfers on a fixed interval so they
// become claimable even when no device is polling.
// Safe for concurrent instances: promotion is a conditional UPDATE.
type PromotionWorker struct {
	promoter     Promoter
	pollInterval time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewPromotionWorker(promoter Promoter) *PromotionWorker {
	return &PromotionWorker{
		promoter:     promoter,
		pollInterval: 5 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval sets the poll interval for the worker.
func (w *PromotionWorker) WithPollInterval(interval time.Duration) *PromotionWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// Start blocks until Stop is called or ctx is canceled.
func (w *PromotionWorker) Start(ctx context.Context) {
	zap.L().Info("promotion worker starting", zap.Duration("interval", w.pollInterval))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("promotion worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("promotion worker stop signal received")
			return
		case <-ticker.C:
			_ = w.ProcessOnce(ctx)
		}
	}
}

func (w *PromotionWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// ProcessOnce runs a single promotion pass immediately.
func (w *PromotionWorker) ProcessOnce(ctx context.Context) error {
	n, err := w.promoter.PromoteDue(ctx)
	if err != nil {
		observability.IncrementWorkerRun("promotion", "failed")
		zap.L().Error("promotion run failed", zap.Error(err))
		return err
	}
	observability.IncrementWorkerRun("promotion", "success")
	if n > 0 {
		zap.L().Debug("delayed transfers promoted", zap.Int64("count", n))
	}
	return nil
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *PromotionWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *PromotionWorker) String() string {
	return fmt.Sprintf("PromotionWorker(interval=%v)", w.pollInterval)
}
