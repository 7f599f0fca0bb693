package worker

import (
	"context"
	"sync"
	"time"

	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/service"
	"go.uber.org/zap"
)

// RollupWorker refreshes the daily rating aggregate in the background so the
// first leaderboard read of a new day does not pay for the rebuild. The read
// path still triggers the same rollup lazily; the worker just front-runs it.
type RollupWorker struct {
	svc      *service.RatingService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRollupWorker(svc *service.RatingService) *RollupWorker {
	return &RollupWorker{
		svc:      svc,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *RollupWorker) WithInterval(interval time.Duration) *RollupWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs the rollup at the configured interval.
func (w *RollupWorker) Start(ctx context.Context) {
	zap.L().Info("rollup worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("rollup worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("rollup worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *RollupWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *RollupWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *RollupWorker) runOnce(ctx context.Context) {
	if err := w.svc.EnsureRollup(ctx); err != nil {
		observability.IncrementWorkerRun("rollup", "failed")
		zap.L().Error("rollup run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("rollup", "success")
}
